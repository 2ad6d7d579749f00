package config

//go:generate go tool go-enum --marshal --names --nocase

// Format of replay results.
// ENUM(yaml, text, ion)
type OutputFormat int

func (o OutputFormat) Ext() string {
	switch o {
	case OutputFormatYaml:
		return ".yaml"
	case OutputFormatText:
		return ".txt"
	case OutputFormatIon:
		return ".ion"
	default:
		// this should never happen
		panic("unsupported output format requested")
	}
}
