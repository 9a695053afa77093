/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package announce renders spoken announcements to MP3 files that the
// rotation can interleave with music. Rendering chains three external
// tools: espeak produces a mono WAV, sox resamples it to 44.1 kHz stereo,
// lame encodes the MP3. An ID3v1 trailer is appended so downstream players
// show a sensible title.
package announce

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/schedule"
	"github.com/friendsincode/bragi/internal/telemetry"
)

const (
	// stageTimeout bounds each external tool invocation.
	stageTimeout = 30 * time.Second
	// id3Artist is written into every generated file's trailer.
	id3Artist = "bragi"
)

// Registrar receives finished announcement files. The rotation service
// implements it.
type Registrar interface {
	RegisterGenerated(category schedule.Category, path string)
}

// Pipeline renders announcement text into the working directory.
type Pipeline struct {
	workDir string
	espeak  string
	sox     string
	lame    string
	logger  zerolog.Logger
}

// NewPipeline creates a renderer writing into workDir with the given tool
// binaries.
func NewPipeline(workDir, espeak, sox, lame string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		workDir: workDir,
		espeak:  espeak,
		sox:     sox,
		lame:    lame,
		logger:  logger.With().Str("component", "announce").Logger(),
	}
}

// OutputPath returns where a rendered file for the category ends up.
func (p *Pipeline) OutputPath(category schedule.Category) string {
	return filepath.Join(p.workDir, string(category)+"-stereo.mp3")
}

// Render speaks text into an MP3 for the category and returns the file
// path. Intermediate WAV files stay in the working directory and are
// overwritten on the next render.
func (p *Pipeline) Render(ctx context.Context, category schedule.Category, text, title string) (string, error) {
	base := string(category)
	monoWAV := filepath.Join(p.workDir, base+"-mono.wav")
	stereoWAV := filepath.Join(p.workDir, base+"-stereo.wav")
	mp3 := p.OutputPath(category)

	stages := []struct {
		name string
		args []string
	}{
		{p.espeak, []string{"-g", "15", "-w", monoWAV, text}},
		{p.sox, []string{monoWAV, "-r", "44.1k", "-c", "2", stereoWAV}},
		{p.lame, []string{stereoWAV, mp3}},
	}
	for _, stage := range stages {
		if err := p.runStage(ctx, stage.name, stage.args); err != nil {
			telemetry.AnnouncementsRenderedTotal.WithLabelValues(string(category), "error").Inc()
			return "", err
		}
	}

	if err := appendID3v1(mp3, title, id3Artist); err != nil {
		telemetry.AnnouncementsRenderedTotal.WithLabelValues(string(category), "error").Inc()
		return "", fmt.Errorf("writing ID3 trailer: %w", err)
	}

	telemetry.AnnouncementsRenderedTotal.WithLabelValues(string(category), "ok").Inc()
	p.logger.Debug().Str("category", base).Str("path", mp3).Msg("announcement rendered")
	return mp3, nil
}

func (p *Pipeline) runStage(ctx context.Context, bin string, args []string) error {
	stageCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	cmd := exec.CommandContext(stageCtx, bin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("running %s: %w (output: %s)", filepath.Base(bin), err, output)
	}
	return nil
}

// appendID3v1 appends a 128-byte ID3v1 trailer: "TAG", 30-byte title,
// 30-byte artist, empty album, 4-digit year, empty comment, genre 28
// (Vocal).
func appendID3v1(path, title, artist string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	trailer := make([]byte, 0, 128)
	trailer = append(trailer, "TAG"...)
	trailer = append(trailer, fixedField(title, 30)...)
	trailer = append(trailer, fixedField(artist, 30)...)
	trailer = append(trailer, make([]byte, 30)...)
	trailer = append(trailer, fmt.Sprintf("%04d", time.Now().Year())...)
	trailer = append(trailer, make([]byte, 30)...)
	trailer = append(trailer, 28)

	_, err = f.Write(trailer)
	return err
}

func fixedField(value string, size int) []byte {
	field := make([]byte, size)
	copy(field, value)
	return field
}
