package mq

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/shaiso/Malsmug/internal/domain"
)

// requestArity — число полей AnalysisRequest на проводе.
//
// Продюсер сериализует структуру как массив:
//
//	[file_name, file_hash, analysis_id, bait_targets, file_bytes]
const requestArity = 5

// maxNesting — предел вложенности массивов и словарей в теле сообщения.
// Запросу хватает двух уровней.
const maxNesting = 16

// DecodeAnalysisRequest разбирает тело сообщения в AnalysisRequest.
//
// Тело недоверенное: длины из заголовков сверяются с остатком тела
// до выделения памяти, глубина вложенности ограничена.
//
// Ошибки:
//   - ErrMalformedEncoding — тело не является ровно одним значением MessagePack
//   - ErrSchemaMismatch — значение не массив из пяти полей нужных типов
func DecodeAnalysisRequest(body []byte) (*domain.AnalysisRequest, error) {
	if err := checkEncoding(body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(body))

	n, err := arrayLen(dec, "request")
	if err != nil {
		return nil, err
	}
	if n != requestArity {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrSchemaMismatch, requestArity, n)
	}

	req := &domain.AnalysisRequest{}

	if req.FileName, err = stringValue(dec, "file_name"); err != nil {
		return nil, err
	}
	if req.FileHash, err = stringValue(dec, "file_hash"); err != nil {
		return nil, err
	}
	if !isPathSegment(req.FileHash) {
		return nil, fmt.Errorf("%w: file_hash %q is not a file name", ErrSchemaMismatch, req.FileHash)
	}
	if req.AnalysisID, err = stringValue(dec, "analysis_id"); err != nil {
		return nil, err
	}
	if req.BaitTargets, err = stringsValue(dec, "bait_targets"); err != nil {
		return nil, err
	}
	if req.FileBytes, err = bytesValue(dec, "file_bytes"); err != nil {
		return nil, err
	}

	return req, nil
}

// EncodeAnalysisRequest сериализует запрос в формат, который читает DecodeAnalysisRequest.
func EncodeAnalysisRequest(req *domain.AnalysisRequest) ([]byte, error) {
	targets := req.BaitTargets
	if targets == nil {
		targets = []string{}
	}
	content := req.FileBytes
	if content == nil {
		content = []byte{}
	}

	body, err := msgpack.Marshal([]interface{}{
		req.FileName,
		req.FileHash,
		req.AnalysisID,
		targets,
		content,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}
	return body, nil
}

// checkEncoding проверяет, что тело — ровно одно значение MessagePack.
//
// Обход итеративный, содержимое строк не читается. Контейнер не может
// заявить больше элементов, чем осталось байт.
func checkEncoding(body []byte) error {
	r := bytes.NewReader(body)
	dec := msgpack.NewDecoder(r)

	// pending[i] — сколько значений ещё ждёт контейнер уровня i
	pending := []int{1}
	for len(pending) > 0 {
		top := len(pending) - 1
		if pending[top] == 0 {
			pending = pending[:top]
			continue
		}
		pending[top]--

		c, err := dec.PeekCode()
		if err != nil {
			return err
		}

		switch {
		case isArrayCode(c):
			n, err := dec.DecodeArrayLen()
			if err != nil {
				return err
			}
			if n > r.Len() {
				return fmt.Errorf("array of %d elements, %d bytes left", n, r.Len())
			}
			pending = append(pending, n)

		case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
			n, err := dec.DecodeMapLen()
			if err != nil {
				return err
			}
			if n > r.Len()/2 {
				return fmt.Errorf("map of %d entries, %d bytes left", n, r.Len())
			}
			pending = append(pending, 2*n)

		case msgpcode.IsString(c) || msgpcode.IsBin(c):
			n, err := dec.DecodeBytesLen()
			if err != nil {
				return err
			}
			if err := skip(r, n); err != nil {
				return err
			}

		case msgpcode.IsExt(c):
			_, n, err := dec.DecodeExtHeader()
			if err != nil {
				return err
			}
			if err := skip(r, n); err != nil {
				return err
			}

		default:
			// скаляры фиксированного размера
			if err := dec.Skip(); err != nil {
				return err
			}
		}

		if len(pending) > maxNesting+1 {
			return fmt.Errorf("nesting deeper than %d", maxNesting)
		}
	}

	if r.Len() > 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}
	return nil
}

func skip(r *bytes.Reader, n int) error {
	if n > r.Len() {
		return fmt.Errorf("value of %d bytes, %d bytes left", n, r.Len())
	}
	_, err := r.Seek(int64(n), io.SeekCurrent)
	return err
}

func isArrayCode(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}

func isIntCode(c byte) bool {
	if msgpcode.IsFixedNum(c) {
		return true
	}
	switch c {
	case msgpcode.Uint8, msgpcode.Uint16, msgpcode.Uint32, msgpcode.Uint64,
		msgpcode.Int8, msgpcode.Int16, msgpcode.Int32, msgpcode.Int64:
		return true
	}
	return false
}

func arrayLen(dec *msgpack.Decoder, name string) (int, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, name, err)
	}
	if !isArrayCode(c) {
		return 0, fmt.Errorf("%w: %s must be an array, got code %#x", ErrSchemaMismatch, name, c)
	}
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, name, err)
	}
	return n, nil
}

func stringValue(dec *msgpack.Decoder, name string) (string, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, name, err)
	}
	if !msgpcode.IsString(c) {
		return "", fmt.Errorf("%w: %s must be a string, got code %#x", ErrSchemaMismatch, name, c)
	}
	s, err := dec.DecodeString()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, name, err)
	}
	return s, nil
}

func stringsValue(dec *msgpack.Decoder, name string) ([]string, error) {
	n, err := arrayLen(dec, name)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := stringValue(dec, fmt.Sprintf("%s[%d]", name, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// bytesValue принимает bin, str и массив целых 0..255.
// Последний вариант — так rmp_serde кодирует Vec<u8> без serde_bytes.
func bytesValue(dec *msgpack.Decoder, name string) ([]byte, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, name, err)
	}

	switch {
	case msgpcode.IsBin(c):
		b, err := dec.DecodeBytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, name, err)
		}
		if b == nil {
			b = []byte{}
		}
		return b, nil

	case msgpcode.IsString(c):
		s, err := dec.DecodeString()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, name, err)
		}
		return []byte(s), nil

	case isArrayCode(c):
		n, err := arrayLen(dec, name)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		for i := range out {
			if out[i], err = octet(dec, name, i); err != nil {
				return nil, err
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s must be binary, got code %#x", ErrSchemaMismatch, name, c)
	}
}

func octet(dec *msgpack.Decoder, name string, i int) (byte, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return 0, fmt.Errorf("%w: %s[%d]: %v", ErrMalformedEncoding, name, i, err)
	}
	if !isIntCode(c) {
		return 0, fmt.Errorf("%w: %s[%d] must be an integer, got code %#x", ErrSchemaMismatch, name, i, c)
	}
	if c == msgpcode.Uint64 {
		v, err := dec.DecodeUint64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s[%d]: %v", ErrMalformedEncoding, name, i, err)
		}
		if v > 255 {
			return 0, fmt.Errorf("%w: %s[%d] is not a byte: %d", ErrSchemaMismatch, name, i, v)
		}
		return byte(v), nil
	}
	v, err := dec.DecodeInt64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s[%d]: %v", ErrMalformedEncoding, name, i, err)
	}
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%w: %s[%d] is not a byte: %d", ErrSchemaMismatch, name, i, v)
	}
	return byte(v), nil
}

// isPathSegment проверяет, что хеш можно использовать как имя файла:
// он приходит из недоверенного сообщения и попадает в путь.
func isPathSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}
