package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"EchoFM/logger"
)

// ErrConversionTimeout is returned when the external converter does not
// finish within the configured deadline.
var ErrConversionTimeout = errors.New("audio: conversion timed out")

// FFmpegProcessor implements Converter by invoking ffmpeg as an isolated
// external process per conversion. Target parameters are fixed: 44.1kHz,
// stereo, 128kbps MP3, chosen for universal playback compatibility.
type FFmpegProcessor struct {
	ffmpegPath string
	timeout    time.Duration
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(ffmpegPath string, timeout time.Duration) *FFmpegProcessor {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, timeout: timeout}
}

// Convert transcodes inputPath to MP3 next to the input, returning the
// output path. The arguments are passed as an explicit array; nothing from
// the filename is ever interpreted by a shell. A hung ffmpeg is killed via
// the command context and reported as ErrConversionTimeout.
func (p *FFmpegProcessor) Convert(ctx context.Context, inputPath string) (string, error) {
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".mp3"
	if outputPath == inputPath {
		// The input is already named .mp3 (conversion was triggered by the
		// MIME hint). Never let ffmpeg write over its own input; the caller
		// swaps the result into place afterwards.
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".conv.mp3"
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", inputPath,
		"-ar", "44100",
		"-ac", "2",
		"-b:a", "128k",
		"-f", "mp3",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("executing ffmpeg",
		logger.String("input", inputPath),
		logger.String("output", outputPath))

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		// Partial output is useless, remove it before reporting.
		os.Remove(outputPath)
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w after %s: %s", ErrConversionTimeout, p.timeout, inputPath)
		}
		return "", fmt.Errorf("ffmpeg execution failed for %s: %w\nFFmpeg Error: %s", inputPath, err, stderr.String())
	}

	logger.Info("conversion finished",
		logger.String("input", inputPath),
		logger.String("output", outputPath),
		logger.Duration("elapsed", time.Since(start)))
	return outputPath, nil
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetAudioDuration uses ffprobe to get the duration of an audio file in seconds.
func (p *FFmpegProcessor) GetAudioDuration(ctx context.Context, inputFile string) (float32, error) {
	ffprobePath := strings.Replace(p.ffmpegPath, "ffmpeg", "ffprobe", 1)

	// Same deadline discipline as Convert: a hung ffprobe is killed, it
	// never stalls the caller.
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", inputFile, err)
	}

	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", inputFile)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}

	return float32(duration), nil
}
