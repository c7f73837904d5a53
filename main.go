// Пакет main реализует утилиту фильтрации сейсмических архивов.
// Поддерживает два режима работы:
//   - HTTP-сервер для выдачи отфильтрованных списков файлов (/filter?id=1)
//   - CLI-режим для однократного прогона всех профилей (--cli)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"seis-filter/array"
	"seis-filter/criteria"
	"seis-filter/internal/utils"
)

const (
	maxIDLength     = 64
	limiterBurst    = 5
	limiterEvery    = 100 * time.Millisecond
	cleanupInterval = 2 * time.Minute
	inactiveTimeout = 30 * time.Minute
)

var defaultCacheDir = filepath.Join(os.TempDir(), "seis-filter-cache")

// AppConfig — конфигурация приложения (YAML/JSON/TOML через viper).
// Profiles: идентификатор профиля -> путь к файлу критериев.
type AppConfig struct {
	ArchiveDir   string
	Pattern      string
	CustomFields map[string]string
	CacheDir     string
	CacheTTL     time.Duration
	Threads      int
	ScanRate     float64
	Profiles     map[string]string
}

func (cfg *AppConfig) Init() {
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.Threads < 1 {
		cfg.Threads = 4
	}
}

var (
	ipLimiter    = make(map[string]*rate.Limiter)
	ipLastSeen   = make(map[string]time.Time)
	limiterMutex sync.RWMutex
	runGroup     singleflight.Group
	validIDRe    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

func loadConfigFromFile(configPath string) (*AppConfig, error) {
	viper.SetConfigFile(configPath)
	ext := filepath.Ext(configPath)
	if ext == ".yaml" || ext == ".yml" {
		viper.SetConfigType("yaml")
	}
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Init()
	if cfg.ArchiveDir == "" {
		return nil, fmt.Errorf("archivedir is required")
	}
	if cfg.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("at least one profile is required")
	}
	for id := range cfg.Profiles {
		if len(id) > maxIDLength || !validIDRe.MatchString(id) {
			return nil, fmt.Errorf("invalid profile id: %q", id)
		}
	}
	return &cfg, nil
}

func getLimiter(ip string) *rate.Limiter {
	limiterMutex.Lock()
	defer limiterMutex.Unlock()
	ipLastSeen[ip] = time.Now()
	if limiter, exists := ipLimiter[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Every(limiterEvery), limiterBurst)
	ipLimiter[ip] = limiter
	return limiter
}

func cleanupLimiters(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiterMutex.RLock()
			var toDelete []string
			now := time.Now()
			for ip, last := range ipLastSeen {
				if now.Sub(last) > inactiveTimeout {
					toDelete = append(toDelete, ip)
				}
			}
			limiterMutex.RUnlock()
			if len(toDelete) > 0 {
				limiterMutex.Lock()
				for _, ip := range toDelete {
					delete(ipLimiter, ip)
					delete(ipLastSeen, ip)
				}
				limiterMutex.Unlock()
			}
		}
	}
}

func isLocalIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

func serveFile(w http.ResponseWriter, content []byte, id string) {
	filename := utils.SanitizeFileName("filtered_" + id + ".txt")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Write(content)
}

// runProfile выполняет один профиль: сопоставление файлов архива,
// фильтрация по критериям профиля, запись списка путей в кэш.
// Одновременные запуски одного профиля схлопываются через singleflight,
// свежий результат берётся из кэша без пересчёта.
func runProfile(ctx context.Context, id string, cfg *AppConfig, logger *slog.Logger, stdout bool) (string, error) {
	listCache := filepath.Join(cfg.CacheDir, "list_"+id+".txt")
	if !utils.IsPathSafe(listCache, cfg.CacheDir) {
		return "", fmt.Errorf("unsafe cache path for id=%s", id)
	}

	if !stdout {
		if info, err := os.Stat(listCache); err == nil && time.Since(info.ModTime()) <= cfg.CacheTTL {
			content, err := os.ReadFile(listCache)
			if err == nil {
				return string(content), nil
			}
		}
	}

	result, err, _ := runGroup.Do(id, func() (interface{}, error) {
		rawCriteria, err := criteria.LoadCriteria(cfg.Profiles[id])
		if err != nil {
			return nil, err
		}

		arr, err := array.New(cfg.ArchiveDir, cfg.Pattern, cfg.CustomFields, false, logger)
		if err != nil {
			return nil, err
		}
		if cfg.ScanRate > 0 {
			arr.ScanLimit = rate.NewLimiter(rate.Limit(cfg.ScanRate), limiterBurst)
		}
		if err := arr.Match(ctx, cfg.Threads); err != nil {
			return nil, err
		}
		if err := arr.Filter(rawCriteria, cfg.Threads, logger.Enabled(ctx, slog.LevelDebug)); err != nil {
			return nil, err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# profile: %s\n", id)
		fmt.Fprintf(&b, "# matched: %d, passed: %d\n", len(arr.Files), len(arr.FilteredFiles))
		for _, rec := range arr.FilteredFiles {
			if p, ok := rec["path"]; ok {
				b.WriteString(p.String())
				b.WriteByte('\n')
			}
		}
		content := b.String()

		if !stdout {
			tmpFile := listCache + ".tmp"
			if err := os.WriteFile(tmpFile, []byte(content), 0o644); err != nil {
				_ = os.Remove(tmpFile)
				return nil, err
			}
			_ = os.Rename(tmpFile, listCache)
		}
		return content, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func main() {
	var (
		cliMode = flag.Bool("cli", false, "Run in CLI mode")
		stdout  = flag.Bool("stdout", false, "Print results to stdout (CLI only)")
		config  = flag.String("config", "", "Path to config file (YAML/JSON/TOML)")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *config == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s --config <file> [--cli [--stdout]] [<port>]\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := loadConfigFromFile(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Create cache dir: %v\n", err)
		os.Exit(1)
	}

	if *cliMode {
		g, ctx := errgroup.WithContext(context.Background())
		var mu sync.Mutex
		var outputs []string

		for id := range cfg.Profiles {
			g.Go(func() error {
				result, err := runProfile(ctx, id, cfg, logger, *stdout)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Profile failed %s: %v\n", id, err)
					return nil
				}
				if *stdout {
					mu.Lock()
					outputs = append(outputs, result)
					mu.Unlock()
				} else {
					fmt.Printf("Success: list_%s.txt saved\n", id)
				}
				return nil
			})
		}
		_ = g.Wait()

		if *stdout {
			for _, out := range outputs {
				fmt.Println(out)
			}
		}
		return
	}

	if len(flag.Args()) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s --config <file> <port>\n", os.Args[0])
		os.Exit(1)
	}
	port := flag.Args()[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupLimiters(ctx)

	http.HandleFunc("/filter", func(w http.ResponseWriter, r *http.Request) {
		clientIP, _, _ := net.SplitHostPort(r.RemoteAddr)
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}
		if !isLocalIP(clientIP) {
			limiter := getLimiter(clientIP)
			if !limiter.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
		}
		id := r.URL.Query().Get("id")
		if id == "" || len(id) > maxIDLength || !validIDRe.MatchString(id) {
			http.Error(w, "Invalid id", http.StatusBadRequest)
			return
		}
		if _, exists := cfg.Profiles[id]; !exists {
			http.Error(w, "Invalid id", http.StatusBadRequest)
			return
		}
		content, err := runProfile(r.Context(), id, cfg, logger, false)
		if err != nil {
			http.Error(w, fmt.Sprintf("Processing error: %v", err), http.StatusInternalServerError)
			return
		}
		serveFile(w, []byte(content), id)
	})

	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listen: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seis Filter Server Starting...\n")
	fmt.Printf("Port: %s\n", port)
	fmt.Printf("Archive: %s\n", cfg.ArchiveDir)
	fmt.Printf("Cache TTL: %s\n", cfg.CacheTTL)
	fmt.Printf("Cache dir: %s\n", cfg.CacheDir)
	fmt.Printf("Profiles: %d\n", len(cfg.Profiles))

	server := &http.Server{
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() { errChan <- server.Serve(listener) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	case <-sigChan:
		fmt.Println("\nShutting down gracefully...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Force shutdown: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("Server stopped.")
}
