package datasets

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
)

// ReadNPZ loads the "arr_0" array from an .npz file. An .npz is a zip
// archive of .npy members; the simulation frames store a single array under
// numpy's default key.
func ReadNPZ(path string) (Grid, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Grid{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "arr_0.npy" && f.Name != "arr_0" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Grid{}, fmt.Errorf("opening member %s of %s: %w", f.Name, path, err)
		}
		g, err := readNPY(rc)
		rc.Close()
		if err != nil {
			return Grid{}, fmt.Errorf("decoding %s: %w", path, err)
		}
		return g, nil
	}
	return Grid{}, fmt.Errorf("%s has no arr_0 member", path)
}

// readNPY decodes a single .npy stream into a Grid. Frames are stored as
// float32; float64 payloads are narrowed on load.
func readNPY(r io.Reader) (Grid, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return Grid{}, err
	}
	if nr.Header.Descr.Fortran {
		return Grid{}, fmt.Errorf("fortran-order arrays are not supported")
	}
	shape := append([]int(nil), nr.Header.Descr.Shape...)
	n := 1
	for _, d := range shape {
		n *= d
	}
	switch nr.Header.Descr.Type {
	case "<f4", "f4":
		data := make([]float32, n)
		if err := nr.Read(&data); err != nil {
			return Grid{}, err
		}
		return Grid{Data: data, Shape: shape}, nil
	case "<f8", "f8":
		wide := make([]float64, n)
		if err := nr.Read(&wide); err != nil {
			return Grid{}, err
		}
		data := make([]float32, n)
		for i, v := range wide {
			data[i] = float32(v)
		}
		return Grid{Data: data, Shape: shape}, nil
	}
	return Grid{}, fmt.Errorf("unsupported npy dtype %q", nr.Header.Descr.Type)
}

// WriteNPZ writes g as the "arr_0" member of an .npz archive. Used by the
// synthetic data generator and tests.
func WriteNPZ(path string, g Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("arr_0.npy")
	if err == nil {
		err = writeNPY(w, g)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// writeNPY encodes a Grid in npy format, version 1.0. npyio's writer only
// handles rank-1 slices and gonum matrices, so the rank-aware header is
// written by hand.
func writeNPY(w io.Writer, g Grid) error {
	dims := make([]string, len(g.Shape))
	for i, d := range g.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(g.Shape) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", shape)
	// magic(6) + version(2) + header length(2) + header must align to 64
	pad := (64 - (10+len(header)+1)%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write([]byte("\x93NUMPY\x01\x00")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, g.Data)
}
