package cmd

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	adapterrepo "github.com/eslsoft/tafsirnet/internal/adapter/repository"
	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/database"
)

func surahsFromConfig(key string) ([]int, error) {
	return normalizeSurahs(viper.GetStringSlice(key))
}

// normalizeSurahs accepts numbers and inclusive ranges such as "1-3".
func normalizeSurahs(values []string) ([]int, error) {
	result := make([]int, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			first, last, err := parseSurahRange(name)
			if err != nil {
				return nil, err
			}
			for n := first; n <= last; n++ {
				result = append(result, n)
			}
		}
	}
	if len(result) == 0 {
		return nil, nil
	}
	result = uniqInts(result)
	sort.Ints(result)
	return result, nil
}

func parseSurahRange(value string) (int, int, error) {
	from, to, isRange := strings.Cut(value, "-")
	start, err := parseSurah(from)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return start, start, nil
	}
	end, err := parseSurah(to)
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("无效的章节范围 %q", value)
	}
	return start, end, nil
}

func parseSurah(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < entity.MinSurah || n > entity.MaxSurah {
		return 0, fmt.Errorf("无效的章节编号 %q", value)
	}
	return n, nil
}

func uniqInts(values []int) []int {
	return lo.Uniq(values)
}

// openStore opens the configured database and makes sure the schema exists.
func openStore(ctx context.Context, cfg *config.Config) (*adapterrepo.SQLStore, error) {
	db, dialect, cleanup, err := database.NewConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	store := adapterrepo.NewSQLStore(db, dialect, cleanup)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("执行数据库迁移失败: %w", err)
	}
	return store, nil
}

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// backupStream is a reader or writer plus the closers that must run, in
// order, once the command is done with it.
type backupStream struct {
	closers []func() error
}

func (b *backupStream) Close() error {
	var errs []error
	for _, closer := range b.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}

func wantsGzip(path string, flag bool) bool {
	return flag || (path != "-" && strings.HasSuffix(strings.ToLower(path), ".gz"))
}

// openBackupWriter opens path for writing ("-" is stdout), adding gzip when asked.
func openBackupWriter(stdout io.Writer, path string, gz bool) (io.Writer, *backupStream, error) {
	stream := &backupStream{}
	w := stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("创建输出目录失败: %w", err)
		}
		file, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("创建备份文件失败: %w", err)
		}
		w = file
		stream.closers = append(stream.closers, file.Close)
	}
	if gz {
		gzw := gzip.NewWriter(w)
		w = gzw
		stream.closers = append([]func() error{gzw.Close}, stream.closers...)
	}
	return w, stream, nil
}

// openBackupReader opens path for reading ("-" is stdin), unwrapping gzip when asked.
func openBackupReader(stdin io.Reader, path string, gz bool) (io.Reader, *backupStream, error) {
	stream := &backupStream{}
	r := stdin
	if path != "-" {
		file, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, nil, fmt.Errorf("打开备份文件失败: %w", err)
		}
		r = file
		stream.closers = append(stream.closers, file.Close)
	}
	if gz {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			_ = stream.Close()
			return nil, nil, fmt.Errorf("创建 gzip 读取器失败: %w", err)
		}
		r = gzr
		stream.closers = append([]func() error{gzr.Close}, stream.closers...)
	}
	return r, stream, nil
}
