package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile sets environment variables from a .env file. Variables already
// set in the environment win. An empty path or a missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	path = filepath.Clean(path)
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for k, v := range vals {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}
