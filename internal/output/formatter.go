package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Formatter renders a report into bytes.
type Formatter interface {
	Name() string
	Format(report *Report) ([]byte, error)
}

// FormatterFunc adapts a function to the Formatter interface.
type FormatterFunc struct {
	ID string
	F  func(report *Report) ([]byte, error)
}

func (f FormatterFunc) Name() string { return f.ID }

func (f FormatterFunc) Format(report *Report) ([]byte, error) { return f.F(report) }

var formatters = map[string]Formatter{}

// aliases map alternative names onto registered formatters.
var aliases = map[string]string{
	"verbose":         "console",
	"console-verbose": "console",
	"table":           "console",
	"lite":            "console-lite",
	"yml":             "yaml",
}

func register(f Formatter) { formatters[f.Name()] = f }

func init() {
	register(ConsoleFormatter{})
	register(ConsoleLiteFormatter{})
	register(JSONFormatter{})
	register(YAMLFormatter{})
	register(CSVFormatter{})
	register(DetailedCSVFormatter{})
}

// GetFormatterByName returns the formatter registered under name or one of
// its aliases, or nil.
func GetFormatterByName(name string) Formatter {
	name = strings.ToLower(strings.TrimSpace(name))
	if target, ok := aliases[name]; ok {
		name = target
	}
	return formatters[name]
}

// AvailableFormatterNames lists the registered formatter names.
func AvailableFormatterNames() []string {
	names := make([]string, 0, len(formatters))
	for name := range formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AvailableFormatAliases lists the accepted aliases.
func AvailableFormatAliases() []string {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileExtension returns the file extension used for a formatter's output.
func FileExtension(f Formatter) string {
	switch f.Name() {
	case "json":
		return "json"
	case "yaml":
		return "yaml"
	case "csv", "detailed-csv":
		return "csv"
	default:
		return "txt"
	}
}

// WriteFormatted renders the report and writes it to a timestamped file in
// the working directory, returning the file name.
func WriteFormatted(f Formatter, report *Report, ext string) (string, error) {
	data, err := f.Format(report)
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("zinsplan_report_%s.%s", time.Now().Format("20060102_150405"), ext)
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", filename, err)
	}
	return filename, nil
}
