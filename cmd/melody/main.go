package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cyrus07424/hummingMelodyTranscriber/capture"
	"github.com/cyrus07424/hummingMelodyTranscriber/export"
	"github.com/cyrus07424/hummingMelodyTranscriber/logging"
	"github.com/cyrus07424/hummingMelodyTranscriber/pitch"
	"github.com/cyrus07424/hummingMelodyTranscriber/session"
	"github.com/cyrus07424/hummingMelodyTranscriber/timeline"
	"github.com/cyrus07424/hummingMelodyTranscriber/transcode"
	"github.com/cyrus07424/hummingMelodyTranscriber/tui"
)

var (
	flagSampleRate int
	flagFrameSize  int
	flagHopSize    int
	flagThreshold  float64
	flagMIDIOut    string
	flagTempo      float64
	flagVerbose    bool
	flagNoColor    bool
)

func main() {
	root := &cobra.Command{
		Use:   "melody",
		Short: "Transcribe a hummed or played melody to notes",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logging.SetLevel(logging.DebugLevel)
			}
			if flagNoColor {
				logging.DisableColors()
			}
		},
	}

	root.PersistentFlags().IntVar(&flagFrameSize, "frame", 4096, "analysis frame length in samples")
	root.PersistentFlags().IntVar(&flagHopSize, "hop", 1024, "hop length between frames in samples")
	root.PersistentFlags().Float64Var(&flagThreshold, "threshold", 0.1, "YIN detection threshold")
	root.PersistentFlags().StringVar(&flagMIDIOut, "midi", "", "write the transcription to this MIDI file")
	root.PersistentFlags().Float64Var(&flagTempo, "tempo", 120, "tempo (BPM) for MIDI export")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored log output")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Transcribe the microphone in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive()
		},
	}
	liveCmd.Flags().IntVar(&flagSampleRate, "rate", 44100, "capture sample rate in Hz")

	fileCmd := &cobra.Command{
		Use:   "file <recording.wav>",
		Short: "Transcribe a recorded WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd.Context(), args[0])
		},
	}

	root.AddCommand(liveCmd, fileCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func sessionConfig(sampleRate int) session.Config {
	cfg := session.DefaultConfig(sampleRate)
	cfg.FrameSize = flagFrameSize
	cfg.HopSize = flagHopSize
	cfg.Threshold = flagThreshold
	return cfg
}

func runLive() error {
	s, err := session.New(sessionConfig(flagSampleRate))
	if err != nil {
		return err
	}

	stream, err := capture.Open(flagSampleRate, flagHopSize)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		return err
	}

	go func() {
		for chunk := range stream.Chunks() {
			if err := s.ProcessChunk(chunk); err != nil {
				logging.Error(err, "frame processing failed")
				return
			}
		}
	}()

	program := tea.NewProgram(tui.NewModel(s), tea.WithAltScreen())
	_, runErr := program.Run()

	if err := stream.Stop(); err != nil {
		logging.Warn("capture shutdown", logging.Fields{"error": err.Error()})
	}
	if runErr != nil {
		return runErr
	}

	return finish(s.Snapshot())
}

func runFile(ctx context.Context, path string) error {
	ctx = logging.ContextWithFields(ctx, logging.Fields{"file": path})

	data, err := transcode.DecodeWAVFile(path)
	if err != nil {
		return err
	}

	s, err := session.New(sessionConfig(data.SampleRate))
	if err != nil {
		return err
	}
	if err := s.AnalyzeBuffer(ctx, data.PCM, data.SampleRate); err != nil {
		return err
	}

	return finish(s.Timeline().Events())
}

// finish prints the transcription and optionally exports it as MIDI
func finish(events []timeline.Event) error {
	if len(events) == 0 {
		fmt.Println("no pitched audio detected")
		return nil
	}

	for i, segment := range timeline.Segments(events) {
		stats, ok := timeline.SegmentStats(segment)
		if !ok {
			continue
		}
		fmt.Printf("phrase %d: %5.2fs – %5.2fs  %3d events  median midi %d  mean %.1f Hz\n",
			i+1, segment[0].Time, segment[len(segment)-1].Time, len(segment),
			stats.MedianMIDI, stats.MeanFrequency)

		for _, note := range export.Notes(segment) {
			fmt.Printf("  %6.2fs  %-4s (midi %d)  %.2fs\n",
				note.Start, noteName(note.MIDI), note.MIDI, note.Duration)
		}
	}

	if flagMIDIOut != "" {
		if err := export.WriteSMF(flagMIDIOut, export.Notes(events), flagTempo); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", flagMIDIOut)
	}
	return nil
}

// noteName renders a MIDI number as its tempered note label
func noteName(midi int) string {
	if note, ok := pitch.NoteForFrequency(pitch.FrequencyForMIDI(midi)); ok {
		return note.Name
	}
	return fmt.Sprintf("#%d", midi)
}
