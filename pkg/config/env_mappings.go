package config

import (
	"reflect"
	"sort"
	"sync"
)

// EnvBinding ties an environment variable to a koanf path.
type EnvBinding struct {
	EnvVar     string
	ConfigPath string
	Sensitive  bool
}

var (
	bindings     []EnvBinding
	bindingsOnce sync.Once
)

// EnvBindings lists every `env` struct tag of Config, sorted by variable name.
func EnvBindings() []EnvBinding {
	bindingsOnce.Do(func() {
		bindings = collectBindings(reflect.TypeOf(Config{}), "")
		sort.Slice(bindings, func(i, j int) bool {
			return bindings[i].EnvVar < bindings[j].EnvVar
		})
	})
	return bindings
}

func collectBindings(t reflect.Type, prefix string) []EnvBinding {
	var out []EnvBinding
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("koanf")
		if !field.IsExported() || key == "" || key == "-" {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if env := field.Tag.Get("env"); env != "" && env != "-" {
			out = append(out, EnvBinding{
				EnvVar:     env,
				ConfigPath: path,
				Sensitive:  field.Tag.Get("sensitive") == "true" || field.Type == reflect.TypeOf(SensitiveString("")),
			})
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			out = append(out, collectBindings(field.Type, path)...)
		}
	}
	return out
}

// envPathIndex maps environment variable names to koanf paths.
func envPathIndex() map[string]string {
	all := EnvBindings()
	index := make(map[string]string, len(all))
	for _, b := range all {
		index[b.EnvVar] = b.ConfigPath
	}
	return index
}

// IsSensitivePath reports whether the koanf path holds a secret.
func IsSensitivePath(path string) bool {
	for _, b := range EnvBindings() {
		if b.ConfigPath == path {
			return b.Sensitive
		}
	}
	return false
}
