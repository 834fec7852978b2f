package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/truecam/internal/client/models"
)

// maxCaptureSize caps what the CLI reads into memory for one capture.
const maxCaptureSize = 64 << 20

// parseLocation reads "lat lon [accuracy]" from args. No args means no
// location reading.
func parseLocation(args []string) (*models.Location, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("location needs latitude and longitude, optionally accuracy")
	}

	vals := make([]float64, 3)
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", s, err)
		}
		vals[i] = v
	}

	loc := &models.Location{Latitude: vals[0], Longitude: vals[1], Accuracy: vals[2]}
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return nil, fmt.Errorf("latitude %v out of range", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return nil, fmt.Errorf("longitude %v out of range", loc.Longitude)
	}
	if loc.Accuracy < 0 {
		return nil, fmt.Errorf("accuracy %v must not be negative", loc.Accuracy)
	}
	return loc, nil
}

// readCapture loads a file to capture and guesses its content type from the
// extension. An empty type lets the pipeline sniff the payload.
func readCapture(path string) ([]byte, string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if !fi.Mode().IsRegular() {
		return nil, "", fmt.Errorf("%s is not a regular file", path)
	}
	if fi.Size() > maxCaptureSize {
		return nil, "", fmt.Errorf("%s is larger than %d bytes", path, maxCaptureSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))), nil
}
