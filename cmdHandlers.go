package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"karaoke-score/apperrors"
	"karaoke-score/compare"
	"karaoke-score/config"
	"karaoke-score/models"
	"karaoke-score/pitch"
	"karaoke-score/service"
	"karaoke-score/utils"
	"karaoke-score/wav"

	"github.com/fatih/color"
	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"
)

type cli struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	out        io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout}

	root := &cobra.Command{
		Use:           "karaoke-score",
		Short:         "Score sung performances against a reference recording by pitch accuracy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a config file (default: ./config.yaml or ./config/config.yaml)")

	root.AddCommand(c.compareCmd(), c.trackCmd(), c.duelCmd(), c.configCmd())
	return root
}

func (c *cli) load(ctx context.Context) error {
	c.logger = utils.GetLogger()

	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFile(c.configPath)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		c.logger.ErrorContext(ctx, "failed to load configuration", slog.Any("error", xerrors.New(err)))
		return err
	}
	return nil
}

func (c *cli) compareCmd() *cobra.Command {
	var (
		plotPath string
		asJSON   bool
		opts     optionFlags
	)

	cmd := &cobra.Command{
		Use:   "compare <reference> <performance>",
		Short: "Compare a performance recording with a reference recording",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			warnIfNoFFmpeg(args...)

			ref, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read reference: %w", err)
			}
			perf, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read performance: %w", err)
			}

			options := opts.apply(cmd, c.cfg.Compare)
			if plotPath != "" {
				options.WantVisualization = true
			}

			result, err := c.cfg.NewEngine(c.logger).Compare(ctx, ref, perf, options)
			if err != nil {
				printFailure(err)
				return err
			}

			if plotPath != "" && result.Image != nil {
				if err := writeOutput(plotPath, result.Image); err != nil {
					return fmt.Errorf("failed to write plot: %w", err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printScore(c.out, result.Score)
			if plotPath != "" {
				fmt.Fprintf(c.out, "plot written to %s\n", plotPath)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&plotPath, "plot", "", "write a PNG of both pitch contours to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (c *cli) trackCmd() *cobra.Command {
	var (
		outPath string
		opts    optionFlags
	)

	cmd := &cobra.Command{
		Use:   "track <audio>",
		Short: "Extract the pitch contour of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			warnIfNoFFmpeg(args...)

			options := opts.apply(cmd, c.cfg.Compare)
			if err := options.Validate(); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			signal, err := c.cfg.NewDecoder().DecodeLimited(cmd.Context(), data, options.MaxDurationSeconds)
			if err != nil {
				printFailure(err)
				return err
			}

			trackerCfg := c.cfg.PitchConfig()
			trackerCfg.Fmin, trackerCfg.Fmax, trackerCfg.HopSize = options.Fmin, options.Fmax, options.HopSize
			contour, err := pitch.Track(signal, trackerCfg)
			if err != nil {
				printFailure(err)
				return err
			}

			if outPath != "" {
				data, err := json.MarshalIndent(contour, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode contour: %w", err)
				}
				if err := writeOutput(outPath, data); err != nil {
					return fmt.Errorf("failed to write contour: %w", err)
				}
			}

			printContourSummary(c.out, filepath.Base(args[0]), signal, contour)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the contour as JSON to this path")
	return cmd
}

func (c *cli) duelCmd() *cobra.Command {
	var nameA, nameB string

	cmd := &cobra.Command{
		Use:   "duel <reference> <performance-a> <performance-b>",
		Short: "Run a two-player challenge on one reference recording",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			warnIfNoFFmpeg(args...)

			queue := service.NewScoringQueue(c.cfg.NewEngine(c.logger), c.cfg.Queue.Workers, c.cfg.Queue.Depth, c.logger)
			defer queue.Close()

			songID := filepath.Base(args[0])
			refs := fileReferences{songID: args[0]}
			svc := service.NewChallengeService(service.NewInMemoryChallengeRepository(), queue, refs, c.cfg.Compare, c.logger)

			challenge, err := svc.CreateChallenge("player-a", nameA, songID, songID)
			if err != nil {
				return err
			}
			if _, err := svc.JoinChallenge(challenge.ID, "player-b", nameB); err != nil {
				return err
			}

			var final *models.Challenge
			for _, turn := range []struct{ id, path string }{{"player-a", args[1]}, {"player-b", args[2]}} {
				audio, err := os.ReadFile(turn.path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", turn.path, err)
				}
				_, outcomes, err := svc.SubmitRecording(ctx, challenge.ID, turn.id, audio)
				if err != nil {
					return err
				}
				outcome := <-outcomes
				if outcome.Err != nil {
					printFailure(outcome.Err)
					return outcome.Err
				}
				final = outcome.Challenge
			}

			printDuel(c.out, final)
			return nil
		},
	}

	cmd.Flags().StringVar(&nameA, "name-a", "Player A", "display name of the first singer")
	cmd.Flags().StringVar(&nameB, "name-b", "Player B", "display name of the second singer")
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := c.cfg.YAML()
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = c.out.Write(data)
			return err
		},
	}
}

// optionFlags overrides configured comparison options for one invocation.
type optionFlags struct {
	fmin, fmax, maxDuration float64
	hop                     int
}

func (o *optionFlags) register(cmd *cobra.Command) {
	defaults := compare.DefaultOptions()
	cmd.Flags().Float64Var(&o.fmin, "fmin", defaults.Fmin, "lowest pitch to track in Hz")
	cmd.Flags().Float64Var(&o.fmax, "fmax", defaults.Fmax, "highest pitch to track in Hz")
	cmd.Flags().IntVar(&o.hop, "hop", defaults.HopSize, "hop size in samples")
	cmd.Flags().Float64Var(&o.maxDuration, "max-duration", defaults.MaxDurationSeconds, "reject recordings longer than this many seconds")
}

func (o *optionFlags) apply(cmd *cobra.Command, base compare.Options) compare.Options {
	if cmd.Flags().Changed("fmin") {
		base.Fmin = o.fmin
	}
	if cmd.Flags().Changed("fmax") {
		base.Fmax = o.fmax
	}
	if cmd.Flags().Changed("hop") {
		base.HopSize = o.hop
	}
	if cmd.Flags().Changed("max-duration") {
		base.MaxDurationSeconds = o.maxDuration
	}
	return base
}

// writeOutput writes data to path, creating missing parent directories.
func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

type fileReferences map[string]string

func (f fileReferences) ReferenceAudio(_ context.Context, songID string) ([]byte, error) {
	path, ok := f[songID]
	if !ok {
		return nil, fmt.Errorf("no reference recording for song %q", songID)
	}
	return os.ReadFile(path)
}

func warnIfNoFFmpeg(paths ...string) {
	for _, p := range paths {
		if filepath.Ext(p) == ".wav" {
			continue
		}
		if err := wav.CheckFFmpegAvailable(); err != nil {
			color.New(color.FgYellow).Fprintf(os.Stderr, "WARNING: %v\n", err)
		}
		return
	}
}

func scoreColor(score float64) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen, color.Bold)
	case score >= 50:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printScore(w io.Writer, score models.ScoreResult) {
	fmt.Fprint(w, "Pitch accuracy: ")
	scoreColor(score.OverallScore).Fprintf(w, "%.1f / 100\n", score.OverallScore)
	fmt.Fprintf(w, "Voiced coverage: %.0f%%\n", score.VoicedCoverage*100)

	if len(score.SegmentScores) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSegments:")
	for _, seg := range score.SegmentScores {
		fmt.Fprintf(w, "  %6.1fs - %6.1fs  ", seg.StartTime, seg.EndTime)
		if seg.VoicedFrames == 0 {
			color.New(color.FgHiBlack).Fprintln(w, "(rest)")
			continue
		}
		scoreColor(seg.LocalScore).Fprintf(w, "%5.1f\n", seg.LocalScore)
	}
}

func printContourSummary(w io.Writer, name string, signal *models.Signal, contour *models.Contour) {
	voiced := contour.VoicedCount()
	fmt.Fprintf(w, "%s: %.2fs at %d Hz, %d frames, %d voiced\n",
		name, signal.Duration(), signal.SampleRate, len(contour.Frames), voiced)
	if voiced == 0 {
		return
	}

	lo, hi, sum := 1e9, 0.0, 0.0
	for _, f := range contour.Frames {
		if !f.Voiced() {
			continue
		}
		hz := *f.Frequency
		sum += hz
		if hz < lo {
			lo = hz
		}
		if hz > hi {
			hi = hz
		}
	}
	fmt.Fprintf(w, "  range %.1f Hz - %.1f Hz, mean %.1f Hz (MIDI %.1f)\n",
		lo, hi, sum/float64(voiced), models.MidiNote(sum/float64(voiced)))
}

func printDuel(w io.Writer, challenge *models.Challenge) {
	if challenge == nil || challenge.Player2 == nil {
		return
	}
	for _, p := range []*models.Player{&challenge.Player1, challenge.Player2} {
		fmt.Fprintf(w, "%-12s ", p.Username)
		if p.Score == nil {
			fmt.Fprintln(w, "not scored")
			continue
		}
		scoreColor(p.Score.OverallScore).Fprintf(w, "%.1f\n", p.Score.OverallScore)
	}

	switch winner := challenge.Player(challenge.WinnerID); {
	case challenge.Status != models.StatusCompleted:
		fmt.Fprintln(w, "Challenge not finished")
	case winner == nil:
		color.New(color.FgCyan, color.Bold).Fprintln(w, "It's a tie!")
	default:
		color.New(color.FgCyan, color.Bold).Fprintf(w, "%s wins!\n", winner.Username)
	}
}

func printFailure(err error) {
	label := "error"
	if kind := apperrors.KindOf(err); kind != "" {
		label = string(kind)
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "%s: %v\n", label, err)
}
