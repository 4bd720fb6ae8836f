package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keagan/soundbed/internal/config"
	"github.com/keagan/soundbed/internal/mix"
	"github.com/keagan/soundbed/pkg/util"
)

var (
	mixWait      int
	mixFadeDelay int
	mixOutput    string

	extractTranscribe bool
	extractOutput     string
)

var mixCmd = &cobra.Command{
	Use:   "mix [narration] [music]",
	Short: "Mix narration over a music bed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		a, err := build(cfg, nil)
		if err != nil {
			return err
		}

		res, err := a.pipeline.MixFiles(cmd.Context(), args[0], args[1], mixWait, mixFadeDelay)
		if err != nil {
			return err
		}

		dest, err := deliver(res.Path, mixOutput)
		if err != nil {
			return err
		}
		log.Info().
			Str("output", dest).
			Str("duration", util.FormatSeconds(res.Duration)).
			Msg("mix complete")
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [video]",
	Short: "Extract the audio track of a video as mp3",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		a, err := build(cfg, nil)
		if err != nil {
			return err
		}

		res, err := a.pipeline.ExtractFile(cmd.Context(), args[0], extractTranscribe)
		if err != nil {
			return err
		}

		dest, err := deliver(res.Path, extractOutput)
		if err != nil {
			return err
		}
		log.Info().Str("output", dest).Msg("extraction complete")

		if res.Transcript != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.Transcript)
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [narration seconds] [music seconds]",
	Short: "Print the mix timeline without rendering",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		narration, err := util.ParseSeconds(args[0])
		if err != nil {
			return err
		}
		music, err := util.ParseSeconds(args[1])
		if err != nil {
			return err
		}

		planner := mix.Planner{FadeoutDuration: cfg.Mix.FadeoutSeconds, BackgroundVolume: cfg.Mix.BackgroundVolume}
		plan, err := planner.Plan(narration, music, mixWait, mixFadeDelay)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "total          %s\n", util.FormatDuration(util.Seconds(plan.TotalDuration)))
		fmt.Fprintf(w, "wait           %s\n", util.FormatSeconds(plan.WaitBeforeMusic))
		fmt.Fprintf(w, "fadeout        %s for %s\n", util.FormatSeconds(plan.FadeoutStart), util.FormatSeconds(plan.FadeoutDuration))
		fmt.Fprintf(w, "music volume   %s\n", strconv.FormatFloat(plan.BackgroundVolume, 'g', -1, 64))
		fmt.Fprintf(w, "loops          %d (%s of music)\n", plan.LoopCount, util.FormatSeconds(plan.ExtendedMusicDuration(music)))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *config.FromContext(cmd.Context())
		if cfg.Transcribe.APIKey != "" {
			cfg.Transcribe.APIKey = "********"
		}
		out, err := yaml.Marshal(&cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

// deliver copies a produced file to dest, or reports its path when dest is empty
func deliver(src, dest string) (string, error) {
	if dest == "" {
		return src, nil
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := util.EnsureDir(dir); err != nil {
			return "", err
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if err := util.RemoveFile(src); err != nil {
		log.Warn().Err(err).Str("path", src).Msg("failed to remove staged output")
	}
	return dest, nil
}

func init() {
	for _, c := range []*cobra.Command{mixCmd, planCmd} {
		c.Flags().IntVarP(&mixWait, "wait", "w", 0, "seconds of music before the narration starts")
		c.Flags().IntVarP(&mixFadeDelay, "fade-delay", "f", 0, "seconds of music after the narration before the fade")
	}
	mixCmd.Flags().StringVarP(&mixOutput, "output", "o", "", "copy the mix here")

	extractCmd.Flags().BoolVarP(&extractTranscribe, "transcribe", "t", false, "also transcribe the audio")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "copy the mp3 here")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
