package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// palette holds the ANSI colors used by the console encoder
type palette struct {
	time      string
	component string
	fg        string
	value     string
	number    string
	warn      string
	warnBg    string
	err       string
	errBg     string
}

var palettes = map[string]palette{
	// Gruvbox Dark (warm, muted)
	"gruvbox": {
		time:      "\x1b[38;5;108m",
		component: "\x1b[38;5;208m",
		fg:        "\x1b[38;5;223m",
		value:     "\x1b[38;5;109m",
		number:    "\x1b[38;5;175m",
		warn:      "\x1b[38;5;214m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;88m",
	},
	// Everforest Dark (forest greens)
	"everforest": {
		time:      "\x1b[38;5;107m",
		component: "\x1b[38;5;108m",
		fg:        "\x1b[38;5;223m",
		value:     "\x1b[38;5;109m",
		number:    "\x1b[38;5;108m",
		warn:      "\x1b[38;5;179m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;52m",
	},
	// No colors, for pipes and CI logs
	"plain": {},
}

// Current active theme
var currentTheme = "everforest"

// SetTheme configures the color scheme for log output.
// Unknown themes are ignored.
func SetTheme(theme string) {
	if _, ok := palettes[theme]; ok {
		currentTheme = theme
	}
}

// HasTheme reports whether name is a known theme.
func HasTheme(name string) bool {
	_, ok := palettes[name]
	return ok
}

func colors() palette {
	return palettes[currentTheme]
}

// fieldsShown lists the structured fields the console encoder prints, in order.
// Everything else is only visible in JSON mode.
var fieldsShown = []string{
	FieldTarget,
	FieldProgram,
	FieldFile,
	FieldOutput,
	FieldCount,
	FieldDurationMS,
	FieldError,
}

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  generate  Translated program  python  classifier_knn  3ms"
type minimalEncoder struct {
	zapcore.Encoder // base encoder for field serialization
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := colors()
	final := buffer.NewPool().Get()

	final.AppendString(paint(c.time, ent.Time.Format("15:04:05")))

	// Level: omitted for INFO
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelString(ent.Level, c))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(paint(c.component, ent.LoggerName))
	}

	final.AppendString("  ")
	final.AppendString(paint(c.fg, ent.Message))

	if values := extractFieldValues(fields, c); values != "" {
		final.AppendString("  ")
		final.AppendString(values)
	}

	final.AppendString("\n")
	return final, nil
}

func paint(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + colorReset
}

// levelString returns bold + colored + background for WARN/ERROR and a
// plain tag for DEBUG
func levelString(level zapcore.Level, c palette) string {
	switch level {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.WarnLevel:
		if c.warn == "" {
			return "WARN"
		}
		return colorBold + c.warnBg + c.warn + "WARN" + colorReset
	default:
		if c.err == "" {
			return level.CapitalString()
		}
		return colorBold + c.errBg + c.err + level.CapitalString() + colorReset
	}
}

// getFieldValue extracts the value from a zap field, handling different field types
func getFieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%t", field.Integer == 1)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// extractFieldValues pulls the values of the shown fields, colored by kind.
// Input: {"target": "python", "program": "knn", "duration_ms": 3}
// Output: "python knn 3ms"
func extractFieldValues(fields []zapcore.Field, c palette) string {
	byKey := make(map[string]zapcore.Field, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f
	}

	var values []string
	for _, key := range fieldsShown {
		f, ok := byKey[key]
		if !ok {
			continue
		}
		val := getFieldValue(f)
		if val == "" {
			continue
		}
		switch key {
		case FieldDurationMS:
			values = append(values, paint(c.number, val)+"ms")
		case FieldCount:
			values = append(values, paint(c.number, val))
		case FieldError:
			values = append(values, paint(c.err, val))
		default:
			values = append(values, paint(c.value, val))
		}
	}

	return strings.Join(values, " ")
}
