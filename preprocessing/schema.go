package preprocessing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// Record は1件の入力データ（属性名 → 生の値）
//
// 値は数値・文字列・nil のいずれか。Imputer.Clean を通した後は、
// 数値フィールドが float64、カテゴリフィールドが string で必ず埋まる。
type Record map[string]any

// Clone はレコードの浅いコピーを返す
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FieldKind はスキーマ上のフィールド種別
type FieldKind int

const (
	// KindUnknown はスキーマに含まれないフィールド
	KindUnknown FieldKind = iota
	// KindNumeric は数値フィールド
	KindNumeric
	// KindCategorical はカテゴリフィールド
	KindCategorical
)

func (k FieldKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Schema は特徴量スキーマ
//
// NumericFields と CategoricalFields は互いに素で、Defaults は
// フィールド固有の補完値を持つ。学習と推論で同じ値を共有する。
type Schema struct {
	Version           string
	NumericFields     []string
	CategoricalFields []string
	Defaults          map[string]any
}

// Kind はフィールドの種別を返す
func (s Schema) Kind(field string) FieldKind {
	for _, f := range s.NumericFields {
		if f == field {
			return KindNumeric
		}
	}
	for _, f := range s.CategoricalFields {
		if f == field {
			return KindCategorical
		}
	}
	return KindUnknown
}

// Fields は数値フィールド、カテゴリフィールドの順に全フィールドを返す
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s.NumericFields)+len(s.CategoricalFields))
	out = append(out, s.NumericFields...)
	return append(out, s.CategoricalFields...)
}

// Validate はスキーマの整合性を検証する
//
// 検証内容:
//   - フィールド名が空でないこと、重複がないこと
//   - 数値フィールドとカテゴリフィールドが重ならないこと
//   - Defaults のキーがスキーマに含まれ、型がフィールド種別と一致すること
func (s Schema) Validate() error {
	if len(s.NumericFields)+len(s.CategoricalFields) == 0 {
		return errors.NewValidationError("schema", "no fields", s.Version)
	}

	seen := make(map[string]FieldKind)
	check := func(fields []string, kind FieldKind) error {
		for _, f := range fields {
			if strings.TrimSpace(f) == "" {
				return errors.NewValidationError("schema."+kind.String(), "empty field name", f)
			}
			if prev, ok := seen[f]; ok {
				if prev == kind {
					return errors.NewValidationError(f, "duplicate field", f)
				}
				return errors.NewValidationError(f, "field is both numeric and categorical", f)
			}
			seen[f] = kind
		}
		return nil
	}
	if err := check(s.NumericFields, KindNumeric); err != nil {
		return err
	}
	if err := check(s.CategoricalFields, KindCategorical); err != nil {
		return err
	}

	for field, v := range s.Defaults {
		switch seen[field] {
		case KindNumeric:
			if _, ok := toFloat(v); !ok {
				return errors.NewValidationError(field, "numeric default must be a number", v)
			}
		case KindCategorical:
			if _, ok := v.(string); !ok {
				return errors.NewValidationError(field, "categorical default must be a string", v)
			}
		default:
			return errors.NewValidationError(field, "default for a field outside the schema", v)
		}
	}
	return nil
}

// Fingerprint はバージョン、フィールド一覧、補完値から計算した
// 安定した16進ダイジェストを返す。アーティファクトとスキーマの対応確認に使う。
func (s Schema) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version=%s\n", s.Version)
	fmt.Fprintf(&b, "numeric=%s\n", strings.Join(s.NumericFields, ","))
	fmt.Fprintf(&b, "categorical=%s\n", strings.Join(s.CategoricalFields, ","))

	keys := make([]string, 0, len(s.Defaults))
	for k := range s.Defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.Defaults[k]
		if f, ok := toFloat(v); ok && s.Kind(k) == KindNumeric {
			fmt.Fprintf(&b, "default.%s=n:%s\n", k, strconv.FormatFloat(f, 'g', -1, 64))
			continue
		}
		fmt.Fprintf(&b, "default.%s=s:%v\n", k, v)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
