package main

import (
	"errors"
	"fmt"

	"lyrik/internal/app"
	"lyrik/internal/lyrics"
	"lyrik/internal/resolver"

	"github.com/spf13/cobra"
)

var (
	FlagTitle   string
	FlagAlbum   string
	FlagArtists []string
	FlagFuzzy   bool
	FlagParsed  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Resolve lyrics for one track and print them",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if FlagTitle == "" {
			return errors.New("--title is required")
		}
		cfg := loadConfig()

		engine, err := app.NewEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		track := lyrics.Track{Title: FlagTitle, Album: FlagAlbum, Artists: FlagArtists}
		out := engine.Resolver.Lookup(cmd.Context(), track, FlagFuzzy)
		if out.Kind != resolver.Found {
			return fmt.Errorf("no lyrics for %s: %s", track, out.Describe())
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(cmd.ErrOrStderr(), "# %s\n", out.Describe())
		if !FlagParsed {
			fmt.Fprintln(w, out.Result.Lyrics)
			return nil
		}

		doc := lyrics.NewDocument(out.Result.Lyrics, out.Result.Translations)
		fmt.Fprint(w, lyrics.FormatLRC(doc.Original))
		for _, lang := range doc.Languages() {
			fmt.Fprintf(w, "\n# %s\n", lang)
			fmt.Fprint(w, lyrics.FormatLRC(doc.Translations[lang]))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&FlagTitle, "title", "t", "", "track title")
	fetchCmd.Flags().StringVarP(&FlagAlbum, "album", "a", "", "album name")
	fetchCmd.Flags().StringArrayVarP(&FlagArtists, "artist", "r", nil, "artist name, repeat for several artists")
	fetchCmd.Flags().BoolVar(&FlagFuzzy, "fuzzy", true, "accept fuzzy matches when no source has an exact match")
	fetchCmd.Flags().BoolVar(&FlagParsed, "parsed", false, "print normalized LRC including translations")
}
