package preprocessing

import "sync"

// Imputer はスキーマの補完ポリシーに従ってレコードを整形する
//
// 欠損値は次の順で埋める:
//  1. Defaults にあるフィールド固有の値
//  2. それ以外のカテゴリフィールドは "NA"
//  3. それ以外の数値フィールドは 0
//
// スキーマ外の属性は取り除く。Clean は決定的かつ冪等で、学習時と推論時に
// 同じ処理が走ることで train/serve の差異を防ぐ。
type Imputer struct {
	Schema Schema

	// numericDefaults, categoricalDefaults は Schema.Defaults を型付けしたもの。
	// gob から復元した場合は初回の Clean で作り直す
	once                sync.Once
	numericDefaults     map[string]float64
	categoricalDefaults map[string]string
}

// MissingCategory はカテゴリフィールドの既定の補完値
const MissingCategory = "NA"

// NewImputer は新しい Imputer を作成する
//
// パラメータ:
//   - schema: 特徴量スキーマ（事前に Validate 済みであること）
//
// 使用例:
//
//	imp := preprocessing.NewImputer(housing.Schema())
//	cleaned := imp.Clean(record)
func NewImputer(schema Schema) *Imputer {
	im := &Imputer{Schema: schema}
	im.once.Do(im.init)
	return im
}

func (im *Imputer) init() {
	im.numericDefaults = make(map[string]float64)
	im.categoricalDefaults = make(map[string]string)
	for field, v := range im.Schema.Defaults {
		switch im.Schema.Kind(field) {
		case KindNumeric:
			if f, ok := toFloat(v); ok {
				im.numericDefaults[field] = f
			}
		case KindCategorical:
			if s, ok := toCategory(v); ok {
				im.categoricalDefaults[field] = s
			}
		}
	}
}

// Clean は補完済みの新しいレコードを返す。入力は変更しない。
func (im *Imputer) Clean(r Record) Record {
	im.once.Do(im.init)

	out := make(Record, len(im.Schema.NumericFields)+len(im.Schema.CategoricalFields))
	for _, field := range im.Schema.NumericFields {
		if f, ok := toFloat(r[field]); ok {
			out[field] = f
		} else if d, ok := im.numericDefaults[field]; ok {
			out[field] = d
		} else {
			out[field] = 0.0
		}
	}
	for _, field := range im.Schema.CategoricalFields {
		if s, ok := toCategory(r[field]); ok {
			out[field] = s
		} else if d, ok := im.categoricalDefaults[field]; ok {
			out[field] = d
		} else {
			out[field] = MissingCategory
		}
	}
	return out
}

// CleanAll は全レコードに Clean を適用する
func (im *Imputer) CleanAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = im.Clean(r)
	}
	return out
}
