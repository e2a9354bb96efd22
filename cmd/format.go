package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
)

// formatValue is a pflag.Value restricted to the supported output formats.
type formatValue string

const (
	formatTable formatValue = "table"
	formatJSON  formatValue = "json"
	formatIDs   formatValue = "ids"
)

var _ pflag.Value = (*formatValue)(nil)

func (f *formatValue) String() string {
	return string(*f)
}

func (f *formatValue) Set(v string) error {
	switch formatValue(v) {
	case formatTable, formatJSON, formatIDs:
		*f = formatValue(v)
		return nil
	}
	return fmt.Errorf("invalid format %q (valid: table, json, ids)", v)
}

func (f *formatValue) Type() string {
	return "format"
}
