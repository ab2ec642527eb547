package model

import (
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// SaveModelToWriter はモデルを gob 形式で io.Writer に書き出す
//
// パラメータ:
//   - model: 保存するモデル（StateManager を保持する構造体のポインタ）
//   - w: 保存先の Writer
//
// 戻り値:
//   - error: エンコードに失敗した場合のエラー
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader は io.Reader から gob 形式のモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先のモデル（ポインタ）
//   - r: 読み込み元の Reader
//
// 戻り値:
//   - error: デコードに失敗した場合のエラー
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
