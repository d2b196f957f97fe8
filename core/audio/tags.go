package audio

import (
	"fmt"

	"github.com/bogem/id3v2/v2"
)

// WriteTitle replaces every ID3 frame of path with a single UTF-8 title frame.
func WriteTitle(path, title string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag %s: %w", path, err)
	}
	defer tag.Close()

	tag.DeleteAllFrames()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(title)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag %s: %w", path, err)
	}
	return nil
}

// ReadTitle returns the ID3 title of path, or "" when the file has none.
func ReadTitle(path string) (string, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Title"}})
	if err != nil {
		return "", fmt.Errorf("open id3 tag %s: %w", path, err)
	}
	defer tag.Close()
	return tag.Title(), nil
}
