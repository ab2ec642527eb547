package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/houseprice/core/model"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// DictVectorizer はレコードを固定次元の数値ベクトルに変換するエンコーダ
//
// 数値フィールドは値そのまま、カテゴリフィールドは "field=value" ごとの
// one-hot 列になる。列は名前順に並べて Fit 時に固定する。学習時に
// 見ていないカテゴリ値は全ゼロのブロックとして静かに符号化される。
// Fit 後は読み取り専用で、Transform は並行に呼び出してよい。
type DictVectorizer struct {
	State *model.StateManager

	Schema Schema

	// Features は列名（名前順）
	Features []string

	// Vocab は列名 → 列番号
	Vocab map[string]int
}

// NewDictVectorizer は新しい DictVectorizer を作成する
//
// 使用例:
//
//	dv := preprocessing.NewDictVectorizer(housing.Schema())
//	X, err := dv.FitTransform(cleaned)
func NewDictVectorizer(schema Schema) *DictVectorizer {
	return &DictVectorizer{
		State:  model.NewStateManager(),
		Schema: schema,
	}
}

func categoryFeature(field, value string) string {
	return field + "=" + value
}

// Fit はレコード群から列を決める
//
// 数値フィールドはレコード中に値があれば1列、カテゴリフィールドは
// 観測された (フィールド, 値) の組ごとに1列を割り当てる。空の入力は
// 列数0の学習済みエンコーダになる（エラーにはしない）。
func (dv *DictVectorizer) Fit(records []Record) error {
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, field := range dv.Schema.NumericFields {
			if _, ok := toFloat(r[field]); ok {
				seen[field] = struct{}{}
			}
		}
		for _, field := range dv.Schema.CategoricalFields {
			if v, ok := toCategory(r[field]); ok {
				seen[categoryFeature(field, v)] = struct{}{}
			}
		}
	}

	features := make([]string, 0, len(seen))
	for name := range seen {
		features = append(features, name)
	}
	sort.Strings(features)

	vocab := make(map[string]int, len(features))
	for i, name := range features {
		vocab[name] = i
	}

	dv.Features = features
	dv.Vocab = vocab
	dv.State.SetFitted(len(features), len(records))
	return nil
}

// Transform はレコード群を (n_records × n_features) の行列に変換する
//
// 戻り値:
//   - *mat.Dense: 変換後の行列
//   - error: 未学習の場合は NotFittedError、列数0またはレコード0件の場合は ValueError
func (dv *DictVectorizer) Transform(records []Record) (*mat.Dense, error) {
	if err := dv.State.RequireFitted("DictVectorizer", "Transform"); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewValueError("DictVectorizer.Transform", "no records to transform")
	}
	if len(dv.Features) == 0 {
		return nil, errors.NewValueError("DictVectorizer.Transform", "encoder was fitted without features")
	}

	X := mat.NewDense(len(records), len(dv.Features), nil)
	for i, r := range records {
		for _, field := range dv.Schema.NumericFields {
			col, ok := dv.Vocab[field]
			if !ok {
				continue
			}
			if f, ok := toFloat(r[field]); ok {
				X.Set(i, col, f)
			}
		}
		for _, field := range dv.Schema.CategoricalFields {
			v, ok := toCategory(r[field])
			if !ok {
				continue
			}
			if col, ok := dv.Vocab[categoryFeature(field, v)]; ok {
				X.Set(i, col, 1)
			}
		}
	}
	return X, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (dv *DictVectorizer) FitTransform(records []Record) (*mat.Dense, error) {
	if err := dv.Fit(records); err != nil {
		return nil, err
	}
	return dv.Transform(records)
}

// FeatureNames は列名のコピーを返す
func (dv *DictVectorizer) FeatureNames() []string {
	return append([]string(nil), dv.Features...)
}

// NFeatures は列数を返す
func (dv *DictVectorizer) NFeatures() int {
	return len(dv.Features)
}

// Vocabulary は列名 → 列番号の対応のコピーを返す
func (dv *DictVectorizer) Vocabulary() map[string]int {
	out := make(map[string]int, len(dv.Vocab))
	for k, v := range dv.Vocab {
		out[k] = v
	}
	return out
}

// UnseenCategories は学習時に観測されなかった値を持つカテゴリフィールドを
// スキーマ順で返す。ログ出力用で、符号化の結果には影響しない。
func (dv *DictVectorizer) UnseenCategories(r Record) []string {
	var unseen []string
	for _, field := range dv.Schema.CategoricalFields {
		v, ok := toCategory(r[field])
		if !ok {
			continue
		}
		if _, ok := dv.Vocab[categoryFeature(field, v)]; !ok {
			unseen = append(unseen, field)
		}
	}
	return unseen
}
