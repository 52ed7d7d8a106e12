package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	btoml "github.com/BurntSushi/toml"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/gimbalkit/gimbal/device/hid"
	"github.com/gimbalkit/gimbal/internal/configpaths"
	"github.com/gimbalkit/gimbal/prefs"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init    ConfigInit    `cmd:"" help:"Generate a configuration template for a command"`
	Prefs   ConfigPrefs   `cmd:"" help:"Write the default motion preference file"`
	Devices ConfigDevices `cmd:"" help:"Write a device spec template for unlisted hardware"`
}

// ConfigInit scaffolds a configuration file for a specific command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"monitor,gesture,relay"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run generates a configuration template dynamically via reflection of the command structs and tags.
func (c *ConfigInit) Run() error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}

	var root map[string]any
	switch c.Command {
	case "monitor":
		root = buildMapFromStruct(reflect.TypeOf(Monitor{}))
	case "gesture":
		root = buildMapFromStruct(reflect.TypeOf(Gesture{}))
	case "relay":
		root = buildMapFromStruct(reflect.TypeOf(Relay{}))
	default:
		return errors.New("unknown command; expected 'monitor', 'gesture' or 'relay'")
	}

	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + format
	}

	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(root, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(root)
	case "toml":
		data, err = toml.Marshal(root)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// ConfigPrefs writes the stock preference set to the user config dir (or
// --output) so there is a file to edit before the first gesture.
type ConfigPrefs struct {
	Output string `help:"Destination file path (defaults to the user config dir)"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

func (c *ConfigPrefs) Run() error {
	dest := c.Output
	if dest == "" {
		var err error
		dest, err = configpaths.DefaultPrefsPath()
		if err != nil {
			return err
		}
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := prefs.Save(dest, prefs.Default()); err != nil {
		return err
	}
	fmt.Println(dest)
	return nil
}

// ConfigDevices writes a device spec template. The example entry uses
// the SpaceNavigator layout; edit the IDs and offsets for the actual
// hardware and the registry will pick it up.
type ConfigDevices struct {
	Output string `help:"Destination file path (defaults to the user config dir)"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

func (c *ConfigDevices) Run() error {
	dest := c.Output
	if dest == "" {
		var err error
		dest, err = configpaths.DefaultDeviceSpecsPath()
		if err != nil {
			return err
		}
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	reg := hid.NewRegistry()
	example, _ := reg.Lookup(0x46d, 0xc626)
	example.Name = "Example Device"
	template := struct {
		Devices []hid.DeviceSpec `toml:"device"`
	}{Devices: []hid.DeviceSpec{example}}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := btoml.NewEncoder(f).Encode(template); err != nil {
		return err
	}
	fmt.Println(dest)
	return nil
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = toLower(r[0])
	return string(r)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func buildMapFromStruct(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Tag.Get("kong") == "-" {
			continue
		}

		if _, ok := f.Tag.Lookup("embed"); ok {
			prefix := f.Tag.Get("prefix")
			name := strings.TrimSuffix(prefix, ".")
			sub := buildMapFromStruct(f.Type)
			if name != "" {
				out[name] = sub
			} else {
				for k, v := range sub {
					out[k] = v
				}
			}
			continue
		}

		key := lowerCamel(f.Name)
		def := f.Tag.Get("default")
		val := defaultValueForField(f.Type, def)
		if val != nil {
			out[key] = val
		}
	}
	return out
}

func defaultValueForField(t reflect.Type, def string) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "time" && t.Name() == "Duration" {
		if def != "" {
			return def
		}
		return "0s"
	}
	switch t.Kind() {
	case reflect.String:
		return def // may be empty
	case reflect.Bool:
		if def == "" {
			return false
		}
		b, err := strconv.ParseBool(def)
		if err != nil {
			return false
		}
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if def == "" {
			return 0
		}
		n, err := strconv.ParseInt(def, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if def == "" {
			return 0
		}
		n, err := strconv.ParseUint(def, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case reflect.Float32, reflect.Float64:
		if def == "" {
			return 0
		}
		f, err := strconv.ParseFloat(def, 64)
		if err != nil {
			return 0
		}
		return f
	case reflect.Struct:
		return buildMapFromStruct(t)
	default:
		return nil
	}
}
