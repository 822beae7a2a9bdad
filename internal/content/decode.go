package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// Decode parses one locale file into a Def. The format is picked from the
// extension of name: .yaml/.yml, .json or .toml.
func Decode(name string, data []byte) (Def, error) {
	def := Def{}
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".yaml", ".yml":
		// yaml.v3 rejects duplicate keys within one mapping
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, xerrors.Wrapf(err, "decode %s", name)
		}
	case ".json":
		// encoding/json keeps the last of two equal keys, so walk tokens instead
		d, err := decodeJSON(data)
		if err != nil {
			return nil, xerrors.Wrapf(err, "decode %s", name)
		}
		def = d
	case ".toml":
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, xerrors.Wrapf(err, "decode %s", name)
		}
	default:
		return nil, xerrors.Newf("decode %s: unsupported extension %q", name, ext)
	}
	return def, nil
}

// SupportedExt reports whether Decode understands name's extension.
func SupportedExt(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// decodeJSON reads exactly one JSON object. Repeated keys within an object
// and any data after the object are errors.
func decodeJSON(data []byte) (Def, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, xerrors.Newf("top level must be an object, got %v", tok)
	}
	def, err := jsonObject(dec, "")
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = xerrors.New("trailing data after top-level object")
		}
		return nil, err
	}
	return def, nil
}

// jsonObject reads members up to the closing brace; the opening brace has
// been consumed.
func jsonObject(dec *json.Decoder, at string) (map[string]any, error) {
	obj := map[string]any{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)
		full := key
		if at != "" {
			full = at + "." + key
		}
		if _, dup := obj[key]; dup {
			return nil, xerrors.Newf("duplicate key %q", full)
		}
		v, err := jsonValue(dec, full)
		if err != nil {
			return nil, err
		}
		obj[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func jsonValue(dec *json.Decoder, at string) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch tok {
	case json.Delim('{'):
		return jsonObject(dec, at)
	case json.Delim('['):
		var list []any
		for dec.More() {
			v, err := jsonValue(dec, at)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	}
	return tok, nil
}
