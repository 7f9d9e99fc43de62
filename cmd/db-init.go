/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	adapterrepo "github.com/eslsoft/tafsirnet/internal/adapter/repository"
	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/corpus"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/server"
)

// dbInitCmd migrates the corpus table then seeds it with commentary entries
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "初始化数据库并导入经注语料",
	Long:  "执行数据库迁移并导入经注语料。默认导入内置样例，可通过 --file 指定本地 YAML/JSON 文件，或通过 --url 下载 (支持 zip 压缩包)。注意: go-sqlite3 需要 CGO_ENABLED=1 构建。如需仅迁移不导入，可使用 --schema-only。",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		batch, _ := cmd.Flags().GetInt("batch")
		schemaOnly, _ := cmd.Flags().GetBool("schema-only")
		cacheDir, _ := cmd.Flags().GetString("cache-dir")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		logger, err := server.NewLogger(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("数据库迁移完成")
		if schemaOnly {
			return nil
		}

		entries, err := loadSeedEntries(ctx, logger, url, file, cacheDir, noCache)
		if err != nil {
			return err
		}
		n, err := seedStore(ctx, store, entries, batch)
		if err != nil {
			return err
		}
		logger.Infof("导入完成: %d 条经注", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
	dbInitCmd.Flags().String("url", "", "语料下载地址 (.yaml/.json 或包含其一的 .zip)")
	dbInitCmd.Flags().String("file", "", "本地语料文件路径")
	dbInitCmd.Flags().Int("batch", 200, "批量写入大小")
	dbInitCmd.Flags().Bool("schema-only", false, "仅执行数据库迁移，不导入语料")
	dbInitCmd.Flags().String("cache-dir", "", "下载缓存目录 (默认: 用户缓存目录/tafsirnet)")
	dbInitCmd.Flags().Bool("no-cache", false, "忽略本地缓存, 强制重新下载")
}

func loadSeedEntries(ctx context.Context, logger *logrus.Logger, url, file, cacheDirFlag string, noCache bool) ([]*entity.CommentaryEntry, error) {
	switch {
	case file != "":
		logger.Infof("读取本地语料: %s", file)
		return corpus.LoadFile(file)
	case url != "":
		return downloadCorpus(ctx, logger, url, cacheDirFlag, noCache)
	default:
		logger.Info("使用内置样例语料")
		return corpus.Seed()
	}
}

func downloadCorpus(ctx context.Context, logger *logrus.Logger, url, cacheDirFlag string, noCache bool) ([]*entity.CommentaryEntry, error) {
	cacheDir, cachedPath, fromCache, err := prepareCachePath(url, cacheDirFlag, noCache)
	if err != nil {
		return nil, err
	}
	if !fromCache {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("创建缓存目录失败: %w", err)
		}
		logger.Infof("下载语料到缓存: %s", cachedPath)
		if err := downloadFile(ctx, url, cachedPath); err != nil {
			return nil, err
		}
	} else {
		logger.Infof("使用缓存文件: %s", cachedPath)
	}

	if !strings.EqualFold(filepath.Ext(cachedPath), ".zip") {
		return corpus.LoadFile(cachedPath)
	}

	tmpDir, err := os.MkdirTemp("", "tafsir-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	corpusPath, err := unzipSingle(isCorpusFile, cachedPath, tmpDir)
	if err != nil {
		return nil, err
	}
	logger.Infof("已解压语料: %s", corpusPath)
	return corpus.LoadFile(corpusPath)
}

// seedStore validates the whole batch through an index before writing any of it.
func seedStore(ctx context.Context, store *adapterrepo.SQLStore, entries []*entity.CommentaryEntry, batchSize int) (int, error) {
	index, err := adapterrepo.NewVerseIndex(entries)
	if err != nil {
		return 0, fmt.Errorf("校验语料失败: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	total := 0
	for _, chunk := range lo.Chunk(index.List(), batchSize) {
		n, err := store.Upsert(ctx, chunk)
		if err != nil {
			return total, fmt.Errorf("写入语料失败: %w", err)
		}
		total += n
	}
	return total, nil
}

func isCorpusFile(name string) bool {
	_, err := corpus.FormatFromPath(name)
	return err == nil
}

func downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载失败: %s", resp.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return nil
}

func unzipSingle(match func(string) bool, zipPath, dstDir string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", err
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		outPath := filepath.Join(dstDir, filepath.Base(f.Name))
		out, err := os.Create(outPath)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			return "", err
		}
		out.Close()
		return outPath, nil
	}
	return "", errors.New("zip 中未找到语料文件")
}

func prepareCachePath(url, cacheDirFlag string, noCache bool) (string, string, bool, error) {
	var base string
	if cacheDirFlag != "" {
		base = cacheDirFlag
	} else {
		userCache, err := os.UserCacheDir()
		if err != nil {
			return "", "", false, fmt.Errorf("获取用户缓存目录失败: %w", err)
		}
		base = filepath.Join(userCache, "tafsirnet")
	}
	// stable filename from URL hash, keeping the extension so the format is known
	ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0]))
	if ext == "" {
		ext = ".yaml"
	}
	name := fmt.Sprintf("corpus-%08x%s", crc32.ChecksumIEEE([]byte(url)), ext)
	cachedPath := filepath.Join(base, name)
	if !noCache {
		if st, err := os.Stat(cachedPath); err == nil && st.Size() > 0 {
			return base, cachedPath, true, nil
		}
	}
	return base, cachedPath, false, nil
}
