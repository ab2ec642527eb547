package preprocessing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// toFloat は数値フィールドの値を float64 に変換する。
// nil、空文字、"NA"、解釈できない文字列、非有限値は欠損として false を返す。
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "NA" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toCategory はカテゴリフィールドの値を文字列に変換する。
// 文字列はそのまま、数値は最短の10進表現（60 → "60"）。nil と空文字は欠損。
func toCategory(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		if x == "" {
			return "", false
		}
		return x, true
	case json.Number:
		if f, ok := toFloat(x); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		s := x.String()
		return s, s != ""
	case bool:
		return strconv.FormatBool(x), true
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
