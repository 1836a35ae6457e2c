package main

import (
	"context"
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/repositories/fixture"
	"github.com/memorial-heritage/api/internal/slug"
)

func newSlugCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "slug <locations|legends|martyrs|activities>",
		Short: "Print the public slug of every entity in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := opts.loadFixture()
			if err != nil {
				return err
			}
			items, err := sluggables(cmd.Context(), repo, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tNAME")
			for _, item := range items {
				fields := item.SlugFields()
				fmt.Fprintf(w, "%s\t%s\t%s\n", fields.ID, slug.Encode(item), displayName(fields))
			}
			return w.Flush()
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <locations|legends|martyrs|activities> <slug-or-id>",
		Short: "Resolve a slug (or raw id) to the entity it addresses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := opts.loadFixture()
			if err != nil {
				return err
			}
			items, err := sluggables(cmd.Context(), repo, args[0])
			if err != nil {
				return err
			}
			ref, err := url.PathUnescape(args[1])
			if err != nil {
				return fmt.Errorf("invalid reference %q: %w", args[1], err)
			}

			item, ok := slug.Resolve(ref, items)
			if !ok {
				return fmt.Errorf("no %s matches %q", args[0], ref)
			}
			fields := item.SlugFields()
			fmt.Fprintf(cmd.OutOrStdout(), "id:   %s\nslug: %s\nname: %s\n", fields.ID, slug.Encode(item), displayName(fields))
			return nil
		},
	}
}

// sluggables loads one addressable collection. Site settings are a singleton and have no slug.
func sluggables(ctx context.Context, repo *fixture.Repository, name string) ([]slug.Sluggable, error) {
	key, err := cache.ParseCollection(name)
	if err != nil {
		return nil, err
	}
	switch key {
	case cache.Locations:
		items, err := repo.ListLocations(ctx)
		return asSluggables(items), err
	case cache.Legends:
		items, err := repo.ListLegends(ctx)
		return asSluggables(items), err
	case cache.Martyrs:
		items, err := repo.ListMartyrs(ctx)
		return asSluggables(items), err
	case cache.Activities:
		items, err := repo.ListActivities(ctx)
		return asSluggables(items), err
	default:
		return nil, fmt.Errorf("%s has no slugs", key)
	}
}

func asSluggables[T slug.Sluggable](items []T) []slug.Sluggable {
	out := make([]slug.Sluggable, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

func displayName(f slug.Fields) string {
	if f.NameEn != "" {
		return f.NameEn
	}
	return f.NameAr
}
