package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// OutputFlags are shared by the commands that print structured data.
type OutputFlags struct {
	Format string
	Quiet  bool
}

var outputFormats = []string{"table", "json", "yaml"}

// AddOutputFlags registers --format and --quiet on cmd.
func AddOutputFlags(cmd *cobra.Command, formats ...string) *OutputFlags {
	if len(formats) == 0 {
		formats = outputFormats
	}
	flags := &OutputFlags{}
	cmd.Flags().VarP(newChoiceValue(&flags.Format, formats[0], formats), "format", "f",
		fmt.Sprintf("Output format (%s)", strings.Join(formats, "|")))
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress informational output")
	return flags
}

// choiceValue is a string flag restricted to a fixed set of values.
type choiceValue struct {
	target  *string
	choices []string
}

var _ pflag.Value = (*choiceValue)(nil)

func newChoiceValue(target *string, def string, choices []string) *choiceValue {
	*target = def
	return &choiceValue{target: target, choices: choices}
}

func (c *choiceValue) String() string { return *c.target }

func (c *choiceValue) Type() string { return "string" }

func (c *choiceValue) Set(val string) error {
	val = strings.ToLower(strings.TrimSpace(val))
	for _, choice := range c.choices {
		if val == choice {
			*c.target = val
			return nil
		}
	}
	return fmt.Errorf("invalid value %q, must be one of: %s%s",
		val, strings.Join(c.choices, ", "), suggest(val, c.choices))
}

// suggest returns a "did you mean" hint for the closest choice sharing a
// prefix with val.
func suggest(val string, choices []string) string {
	if val == "" {
		return ""
	}
	for _, choice := range choices {
		if strings.HasPrefix(choice, val[:1]) {
			return fmt.Sprintf(" (did you mean %q?)", choice)
		}
	}
	return ""
}
