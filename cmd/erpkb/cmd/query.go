package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var queryCapability string

var resolveCmd = &cobra.Command{
	Use:   "resolve <backend> <name>",
	Short: "Resolve a catalog entry by approximate name",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolve,
}

var namesCmd = &cobra.Command{
	Use:   "names <backend>",
	Short: "List a catalog's entry names",
	Args:  cobra.ExactArgs(1),
	RunE:  runNames,
}

var searchCmd = &cobra.Command{
	Use:   "search <backend> <keyword>...",
	Short: "Search catalog content by keywords",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

var referenceCmd = &cobra.Command{
	Use:   "reference <backend> <reference-id>",
	Short: "Find the entry that declares a back-reference",
	Args:  cobra.ExactArgs(2),
	RunE:  runReference,
}

var searchThreshold float64

func init() {
	for _, c := range []*cobra.Command{resolveCmd, namesCmd, searchCmd, referenceCmd} {
		c.Flags().StringVar(&queryCapability, "capability", "", "capability catalog to query (default knowledge)")
	}
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "fuzzy match threshold (0 = server default)")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runResolve(cmd *cobra.Command, args []string) error {
	res, err := newClient().Resolve(args[0], queryCapability, args[1])
	if err != nil {
		return err
	}
	if res.Found {
		return printJSON(res.Entry)
	}
	if len(res.Suggestions) == 0 {
		fmt.Printf("no entry matches %q\n", args[1])
		return nil
	}
	fmt.Printf("no entry matches %q, did you mean:\n", args[1])
	for _, s := range res.Suggestions {
		fmt.Printf("  %s (%.0f%%)\n", s.Pattern, s.Confidence*100)
	}
	return nil
}

func runNames(cmd *cobra.Command, args []string) error {
	res, err := newClient().Names(args[0], queryCapability)
	if err != nil {
		return err
	}
	for _, n := range res.Names {
		fmt.Println(n)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	res, err := newClient().Search(args[0], queryCapability, args[1:], searchThreshold)
	if err != nil {
		return err
	}
	if len(res.Hits) == 0 {
		fmt.Println("no matches")
		return nil
	}
	return printJSON(res.Hits)
}

func runReference(cmd *cobra.Command, args []string) error {
	res, err := newClient().Reference(args[0], queryCapability, args[1])
	if err != nil {
		return err
	}
	if !res.Found {
		fmt.Printf("no entry declares reference %q\n", args[1])
		return nil
	}
	fmt.Println(res.Entry)
	return nil
}
