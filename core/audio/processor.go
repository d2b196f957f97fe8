package audio

import "context"

// Processor defines the ffmpeg-backed operations the rest of the service uses.
type Processor interface {
	Convert(ctx context.Context, inputFile, outputFile string) error
	Normalize(ctx context.Context, inputFile, outputFile string) error
	Duration(ctx context.Context, inputFile string) (float64, error)
}
