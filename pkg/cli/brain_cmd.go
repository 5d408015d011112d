package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/usecase"
	"github.com/urfave/cli/v3"
)

var (
	labelColor = color.New(color.FgCyan, color.Bold)
	scoreColor = color.New(color.FgGreen)
	dimColor   = color.New(color.Faint)
)

func ownerFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "user",
		Aliases:     []string{"u"},
		Usage:       "Owner of the brain",
		Value:       string(model.DefaultOwner),
		Sources:     cli.EnvVars("TEDBRAIN_USER"),
		Destination: dst,
	}
}

func cmdAdd() *cli.Command {
	var brainCfg brainConfig
	var owner, source string
	var categories []string

	flags := []cli.Flag{
		ownerFlag(&owner),
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Source tag of the item (note, url, chart, trade, ...)",
			Value:       string(model.SourceNote),
			Destination: &source,
		},
		&cli.StringSliceFlag{
			Name:        "category",
			Usage:       "Category ID to assign (repeatable)",
			Destination: &categories,
		},
	}
	flags = append(flags, brainCfg.Flags()...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Add a knowledge item",
		ArgsUsage: "<content>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			content := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(content) == "" {
				return goerr.Wrap(model.ErrInvalidInput, "content is required")
			}

			uc, _, closer, err := brainCfg.build(ctx)
			if err != nil {
				return err
			}
			defer closer()

			ids := make([]model.CategoryID, len(categories))
			for i, id := range categories {
				ids[i] = model.CategoryID(id)
			}

			result, err := uc.Brain.AddItem(ctx, model.OwnerID(owner), usecase.AddItemInput{
				Content:     content,
				Source:      model.Source(source),
				CategoryIDs: ids,
			})
			if err != nil {
				return err
			}

			w := c.Root().Writer
			_, _ = labelColor.Fprint(w, "added ")
			_, _ = fmt.Fprintln(w, result.ItemID)
			return nil
		},
	}
}

func cmdQuery() *cli.Command {
	var brainCfg brainConfig
	var owner string
	var limit int

	flags := []cli.Flag{
		ownerFlag(&owner),
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of results (0 uses the configured default)",
			Destination: &limit,
		},
	}
	flags = append(flags, brainCfg.Flags()...)

	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "Search the brain by meaning",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, _, closer, err := brainCfg.build(ctx)
			if err != nil {
				return err
			}
			defer closer()

			results, err := uc.Brain.QueryItems(ctx, model.OwnerID(owner), strings.Join(c.Args().Slice(), " "), limit)
			if err != nil {
				return err
			}

			printResults(c.Root().Writer, results)
			return nil
		},
	}
}

func printResults(w io.Writer, results []*model.QueryResult) {
	if len(results) == 0 {
		_, _ = dimColor.Fprintln(w, "no results")
		return
	}
	for i, res := range results {
		_, _ = scoreColor.Fprintf(w, "%2d. [%.4f] ", i+1, res.Similarity)
		_, _ = labelColor.Fprintf(w, "%s ", res.Source)
		_, _ = dimColor.Fprintf(w, "%s %s\n", res.ItemID, res.CreatedAt.Format(time.RFC3339))
		_, _ = fmt.Fprintf(w, "    %s\n", oneLine(res.Content, 200))
	}
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}

func cmdStatus() *cli.Command {
	var brainCfg brainConfig
	var owner string

	flags := append([]cli.Flag{ownerFlag(&owner)}, brainCfg.Flags()...)

	return &cli.Command{
		Name:  "status",
		Usage: "Show brain statistics",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, _, closer, err := brainCfg.build(ctx)
			if err != nil {
				return err
			}
			defer closer()

			status, err := uc.Brain.Status(ctx, model.OwnerID(owner))
			if err != nil {
				return err
			}

			printStatus(c.Root().Writer, status)
			return nil
		},
	}
}

func printStatus(w io.Writer, status *model.BrainStatus) {
	row := func(label string, value any) {
		_, _ = labelColor.Fprintf(w, "%-12s", label)
		_, _ = fmt.Fprintln(w, value)
	}

	row("owner", status.Owner)
	row("items", status.TotalItems)
	row("embeddings", status.Embeddings)
	row("categories", status.Categories)
	row("size_kb", status.SizeKB)
	if status.LastAdded != nil {
		row("last_added", status.LastAdded.Format(time.RFC3339))
	}

	sources := make([]string, 0, len(status.Sources))
	for s := range status.Sources {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)
	for _, s := range sources {
		row("  "+s, status.Sources[model.Source(s)])
	}
}

func cmdCategories() *cli.Command {
	var brainCfg brainConfig
	var owner string

	flags := append([]cli.Flag{ownerFlag(&owner)}, brainCfg.Flags()...)

	return &cli.Command{
		Name:  "categories",
		Usage: "List categories",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, _, closer, err := brainCfg.build(ctx)
			if err != nil {
				return err
			}
			defer closer()

			categories, err := uc.Category.List(ctx, model.OwnerID(owner))
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, cat := range categories {
				_, _ = labelColor.Fprintf(w, "%s ", cat.Name)
				_, _ = dimColor.Fprintln(w, cat.ID)
			}
			return nil
		},
	}
}
