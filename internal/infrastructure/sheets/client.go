// Package sheets reads and writes the linked Google spreadsheet and manages
// Drive change-watch channels on it.
package sheets

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Config holds Google client settings.
type Config struct {
	CredentialsFile string
	FetchTimeout    time.Duration
}

// valuesAPI is the slice of the Sheets API the reader and writer use.
type valuesAPI interface {
	GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
	UpdateValue(ctx context.Context, spreadsheetID, cell string, value interface{}) error
	TabTitles(ctx context.Context, spreadsheetID string) ([]string, error)
}

// channelsAPI is the slice of the Drive API the watcher uses.
type channelsAPI interface {
	Watch(ctx context.Context, fileID string, ch *drive.Channel) (*drive.Channel, error)
	Stop(ctx context.Context, ch *drive.Channel) error
}

// Client bundles the authenticated Sheets and Drive services.
type Client struct {
	values   valuesAPI
	channels channelsAPI
	cfg      Config
	logger   *zap.Logger
}

// NewClient authenticates with the service-account key in cfg.CredentialsFile.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}

	sheetsSvc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newClient(&sheetsValues{svc: sheetsSvc}, &driveChannels{svc: driveSvc}, cfg, logger), nil
}

func newClient(values valuesAPI, channels channelsAPI, cfg Config, logger *zap.Logger) *Client {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{values: values, channels: channels, cfg: cfg, logger: logger.Named("sheets")}
}

// Reader returns a Reader backed by this client.
func (c *Client) Reader() *Reader {
	return &Reader{client: c}
}

// Writer returns a Writer backed by this client.
func (c *Client) Writer() *Writer {
	return &Writer{client: c}
}

// Watcher returns a Watcher backed by this client.
func (c *Client) Watcher() *Watcher {
	return &Watcher{client: c}
}

type sheetsValues struct {
	svc *sheets.Service
}

func (s *sheetsValues) GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *sheetsValues) UpdateValue(ctx context.Context, spreadsheetID, cell string, value interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, cell, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (s *sheetsValues) TabTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

type driveChannels struct {
	svc *drive.Service
}

func (d *driveChannels) Watch(ctx context.Context, fileID string, ch *drive.Channel) (*drive.Channel, error) {
	return d.svc.Files.Watch(fileID, ch).Context(ctx).Do()
}

func (d *driveChannels) Stop(ctx context.Context, ch *drive.Channel) error {
	return d.svc.Channels.Stop(ch).Context(ctx).Do()
}
