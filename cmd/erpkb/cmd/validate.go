package cmd

import (
	"github.com/spf13/cobra"
)

var validateFields []string

var validateCmd = &cobra.Command{
	Use:   "validate <backend> <operation>",
	Short: "Check a field set against an operation's schema",
	Args:  cobra.ExactArgs(2),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringSliceVar(&validateFields, "fields", nil, "field names to validate (comma separated)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	res, err := newClient().Validate(args[0], args[1], validateFields)
	if err != nil {
		return err
	}
	return printJSON(res)
}
