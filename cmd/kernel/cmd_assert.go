package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cogkernel/internal/apigateway"
	"cogkernel/internal/config"
	"cogkernel/internal/kb"
	"cogkernel/internal/term"
)

var assertPriority float64
var assertKbID string

var assertCmd = &cobra.Command{
	Use:   "assert <kif>",
	Short: "Assert a single KIF term into the knowledge base and exit",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssert,
}

var queryKbID string

var queryCmd = &cobra.Command{
	Use:   "query <kif-pattern>",
	Short: "Query the knowledge base for assertions matching a KIF pattern and print results as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	assertCmd.Flags().Float64Var(&assertPriority, "priority", 1.0, "priority of the new assertion")
	assertCmd.Flags().StringVar(&assertKbID, "kb", kb.GlobalKB, "knowledge base id to assert into")
	queryCmd.Flags().StringVar(&queryKbID, "kb", kb.GlobalKB, "knowledge base id to scope the query to")
}

func runAssert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("kernel assert: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	knowledgeBase := kb.New(store)
	if err := knowledgeBase.Load(context.Background()); err != nil {
		return fmt.Errorf("kernel assert: load knowledge base: %w", err)
	}

	parsed, err := term.Parse(args[0])
	if err != nil {
		return fmt.Errorf("kernel assert: parse kif: %w", err)
	}

	a := kb.NewAssertion(uuid.NewString(), parsed, assertPriority, "", assertKbID, nil, 0)
	saved, err := knowledgeBase.SaveAssertion(context.Background(), a)
	if err != nil {
		return fmt.Errorf("kernel assert: save: %w", err)
	}
	fmt.Println(saved.ID)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("kernel query: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	knowledgeBase := kb.New(store)
	if err := knowledgeBase.Load(context.Background()); err != nil {
		return fmt.Errorf("kernel query: load knowledge base: %w", err)
	}

	pattern, err := term.Parse(args[0])
	if err != nil {
		return fmt.Errorf("kernel query: parse kif pattern: %w", err)
	}

	matches := knowledgeBase.QueryAssertions(pattern, queryKbID)
	results := make([]any, 0, len(matches))
	for _, m := range matches {
		results = append(results, apigateway.TermToJSON(m.EffectiveTerm()))
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("kernel query: marshal results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
