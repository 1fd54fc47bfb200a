package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"linkgate/internal/config"

	"github.com/oschwald/geoip2-golang"
)

// Location is a resolved client location. CountryCode and ContinentCode
// are upper-case ISO codes; Region is the first subdivision code when the
// database knows it.
type Location struct {
	CountryCode   string
	ContinentCode string
	Region        string
}

// Locator resolves a client IP to a location. The boolean is false when
// the lookup is unavailable (no database, bad IP, timeout); callers must
// treat that as "no geo targeting", never as a request failure.
type Locator interface {
	Locate(ctx context.Context, ip string) (Location, bool)
}

type GeoIPService struct {
	cfg       config.Config
	logger    *slog.Logger
	geoReader *geoip2.Reader
	geoLock   sync.RWMutex
}

func NewGeoIPService(cfg config.Config, logger *slog.Logger) *GeoIPService {
	return &GeoIPService{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *GeoIPService) Init() {
	if s.cfg.MaxMindAccountID == "" || s.cfg.MaxMindLicenseKey == "" {
		s.logger.Warn("GeoIP: MaxMind credentials not set. Lookups will be disabled.")
		return
	}

	dbPath := s.cfg.MaxMindDBPath
	dbDir := filepath.Dir(dbPath)

	if err := os.MkdirAll(dbDir, 0755); err != nil {
		s.logger.Error("GeoIP: Failed to create directory", "dir", dbDir, "error", err)
		return
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		s.logger.Info("GeoIP: Database missing, downloading...")
		if err := s.updateGeoDB(); err != nil {
			s.logger.Error("GeoIP: Initial download failed", "error", err)
		}
	}

	s.reloadReader(dbPath)
}

func (s *GeoIPService) StartUpdater(ctx context.Context) {
	if s.cfg.MaxMindAccountID == "" {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info("GeoIP: Running scheduled update...")
			if err := s.updateGeoDB(); err != nil {
				s.logger.Error("GeoIP: Update failed", "error", err)
				continue
			}
			s.reloadReader(s.cfg.MaxMindDBPath)
		case <-ctx.Done():
			s.logger.Info("GeoIP: Updater stopping")
			return
		}
	}
}

func (s *GeoIPService) updateGeoDB() error {
	dbDir := filepath.Dir(s.cfg.MaxMindDBPath)
	confPath := filepath.Join(dbDir, "GeoIP.conf")

	content := fmt.Sprintf("AccountID %s\nLicenseKey %s\nEditionIDs %s\nDatabaseDirectory %s\n",
		s.cfg.MaxMindAccountID, s.cfg.MaxMindLicenseKey, s.cfg.MaxMindEditionIDs, dbDir)

	if err := os.WriteFile(confPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write GeoIP.conf: %w", err)
	}
	defer os.Remove(confPath)

	cmd := exec.Command("geoipupdate", "-v", "-f", confPath, "-d", dbDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("geoipupdate failed: %w, output: %s", err, string(output))
	}

	s.logger.Info("GeoIP: Database updated successfully")
	return nil
}

func (s *GeoIPService) reloadReader(path string) {
	s.geoLock.Lock()
	defer s.geoLock.Unlock()

	if s.geoReader != nil {
		s.geoReader.Close()
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		s.logger.Error("GeoIP: Failed to open database", "path", path, "error", err)
		return
	}
	s.geoReader = reader

	meta := reader.Metadata()
	s.logger.Info("GeoIP: Loaded database", "epoch", meta.BuildEpoch)
}

// Locate resolves ip against the loaded database. The lookup itself is a
// local mmdb read; the context bound still applies so a wedged disk can
// never hold up a redirect.
func (s *GeoIPService) Locate(ctx context.Context, ipStr string) (Location, bool) {
	s.geoLock.RLock()
	reader := s.geoReader
	s.geoLock.RUnlock()

	if reader == nil {
		return Location{}, false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}, false
	}

	type lookup struct {
		record *geoip2.City
		err    error
	}
	done := make(chan lookup, 1)
	go func() {
		record, err := reader.City(ip)
		done <- lookup{record, err}
	}()

	select {
	case <-ctx.Done():
		return Location{}, false
	case res := <-done:
		if res.err != nil {
			s.logger.Error("GeoIP: Lookup error", "ip", ipStr, "error", res.err)
			return Location{}, false
		}

		loc := Location{
			CountryCode:   res.record.Country.IsoCode,
			ContinentCode: res.record.Continent.Code,
		}
		if len(res.record.Subdivisions) > 0 {
			loc.Region = res.record.Subdivisions[0].IsoCode
		}
		if loc.CountryCode == "" && loc.ContinentCode == "" {
			return Location{}, false
		}
		return loc, true
	}
}
