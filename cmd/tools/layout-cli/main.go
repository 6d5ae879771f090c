package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/annel0/voxel-editor/internal/layout"
	"github.com/annel0/voxel-editor/internal/world"
)

const commands = "validate, digest, compress, decompress, glb"

var errUnknownCommand = errors.New("unknown command")

func main() {
	var (
		command = flag.String("cmd", "validate", "Command: "+commands)
		input   = flag.String("in", "-", "Input layout file (JSON or zstd), - for stdin")
		output  = flag.String("out", "-", "Output file, - for stdout")
	)
	flag.Parse()

	data, err := readInput(*input)
	if err != nil {
		log.Fatalf("❌ Failed to read %s: %v", *input, err)
	}

	var out bytes.Buffer
	if err := run(*command, data, &out); err != nil {
		if errors.Is(err, errUnknownCommand) {
			fmt.Printf("❌ %v\n", err)
			fmt.Println("Available commands: " + commands)
			os.Exit(1)
		}
		log.Fatalf("❌ %v", err)
	}
	writeOutput(*output, out.Bytes())
}

// run выполняет команду над раскладкой data и пишет результат в out
func run(command string, data []byte, out io.Writer) error {
	if command == "compress" {
		if layout.IsCompressed(data) {
			return errors.New("input is already compressed")
		}
		if _, err := decode(data); err != nil {
			return fmt.Errorf("invalid layout: %w", err)
		}
		packed, err := layout.Compress(data)
		if err != nil {
			return fmt.Errorf("compress failed: %w", err)
		}
		_, err = out.Write(packed)
		return err
	}

	switch command {
	case "validate", "digest", "decompress", "glb":
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}

	records, err := decode(data)
	if err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}

	switch command {
	case "validate":
		_, err = fmt.Fprintf(out, "✅ Layout is valid: %d voxels\n", len(records))
	case "digest":
		_, err = fmt.Fprintf(out, "%016x\n", layout.Digest(records))
	case "decompress":
		var plain []byte
		if plain, err = layout.Encode(records); err == nil {
			_, err = out.Write(plain)
		}
	case "glb":
		voxels, verr := layout.RecordsToVoxels(records)
		if verr != nil {
			return fmt.Errorf("invalid layout: %w", verr)
		}
		if err = layout.ExportGLB(out, voxels); err != nil {
			return fmt.Errorf("GLB export failed: %w", err)
		}
	}
	return err
}

// decode разбирает раскладку и проверяет записи на сетку
func decode(data []byte) ([]world.Record, error) {
	records, err := layout.DecodeAuto(data)
	if err != nil {
		return nil, err
	}
	if _, err := world.ValidateRecords(records); err != nil {
		return nil, err
	}
	return records, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(os.Stdin, layout.MaxLayoutSize+1))
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) {
	var err error
	if path == "-" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		log.Fatalf("❌ Failed to write %s: %v", path, err)
	}
}
