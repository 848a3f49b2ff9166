package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lox/weatherpulse/internal/models"
)

const (
	ReadingsFile    = "weather_data.csv"
	PredictionsFile = "weather_predictions.csv"
)

var (
	ReadingsHeader    = []string{"timestamp", "temperature", "pressure", "humidity", "altitude", "light"}
	PredictionsHeader = []string{"prediction_time", "target_time", "temperature", "pressure", "humidity", "altitude"}
)

// CSVLog appends readings and forecast points to two flat files. Each file
// gets its header once, when it is first created.
type CSVLog struct {
	mu          sync.Mutex
	readings    *csvFile
	predictions *csvFile
}

type csvFile struct {
	path string
	w    io.WriteCloser
}

func openCSVFile(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	cf := &csvFile{path: path, w: f}
	if stat.Size() == 0 {
		if err := cf.write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return cf, nil
}

// write encodes every record before touching the file so a failed call
// leaves nothing behind and can be retried with a fresh encoder.
func (c *csvFile) write(records ...[]string) error {
	var buf bytes.Buffer
	enc := csv.NewWriter(&buf)
	if err := enc.WriteAll(records); err != nil {
		return err
	}
	_, err := c.w.Write(buf.Bytes())
	return err
}

// OpenCSV opens (creating if needed) the reading and prediction logs in dir.
func OpenCSV(dir string) (*CSVLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	readings, err := openCSVFile(filepath.Join(dir, ReadingsFile), ReadingsHeader)
	if err != nil {
		return nil, fmt.Errorf("open readings log: %w", err)
	}
	predictions, err := openCSVFile(filepath.Join(dir, PredictionsFile), PredictionsHeader)
	if err != nil {
		readings.w.Close()
		return nil, fmt.Errorf("open predictions log: %w", err)
	}
	return &CSVLog{readings: readings, predictions: predictions}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func (l *CSVLog) AppendReading(r models.Reading) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readings.write([]string{
		formatTime(r.ReceivedAt),
		formatFloat(r.Temperature),
		formatFloat(r.Pressure),
		formatFloat(r.Humidity),
		formatFloat(r.Altitude),
		formatFloat(r.Light),
	})
}

func (l *CSVLog) AppendPredictions(points []models.Prediction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([][]string, 0, len(points))
	for _, p := range points {
		records = append(records, []string{
			formatTime(p.PredictionTime),
			formatTime(p.TargetTime),
			formatFloat(p.Temperature),
			formatFloat(p.Pressure),
			formatFloat(p.Humidity),
			formatFloat(p.Altitude),
		})
	}
	return l.predictions.write(records...)
}

// RecentReadings parses the reading log and returns up to limit of the
// newest rows, oldest first. Unparseable rows are skipped.
func (l *CSVLog) RecentReadings(limit int) ([]models.Reading, error) {
	l.mu.Lock()
	path := l.readings.path
	l.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(ReadingsHeader)

	var readings []models.Reading
	for line := 0; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, err
		}
		if line == 0 && rec[0] == ReadingsHeader[0] {
			continue
		}
		reading, err := parseReadingRecord(rec)
		if err != nil {
			continue
		}
		readings = append(readings, reading)
		if limit > 0 && len(readings) > limit {
			readings = readings[1:]
		}
	}
	return readings, nil
}

func parseReadingRecord(rec []string) (models.Reading, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return models.Reading{}, err
	}
	var vals [5]float64
	for i := range vals {
		vals[i], err = strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return models.Reading{}, err
		}
	}
	return models.Reading{
		ReceivedAt:  ts,
		Temperature: vals[0],
		Pressure:    vals[1],
		Humidity:    vals[2],
		Altitude:    vals[3],
		Light:       vals[4],
	}, nil
}

func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.readings.w.Close(), l.predictions.w.Close())
}
