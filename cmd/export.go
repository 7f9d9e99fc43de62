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
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/usecase/backup"
)

const (
	exportOutputKey = "backup.export.output"
	exportGzipKey   = "backup.export.gzip"
	exportSurahsKey = "backup.export.surahs"
	exportBatchKey  = "backup.export.batch_size"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出经注语料为 NDJSON 备份",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		outputPath := viper.GetString(exportOutputKey)
		batchSize := viper.GetInt(exportBatchKey)
		surahs, err := surahsFromConfig(exportSurahsKey)
		if err != nil {
			return err
		}
		gzipEnabled := viper.GetBool(exportGzipKey)
		if outputPath == "" {
			outputPath = defaultExportFilename(gzipEnabled)
		}
		gzipEnabled = wantsGzip(outputPath, gzipEnabled)

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		service, err := backup.NewService(store, backup.WithBatchSize(batchSize))
		if err != nil {
			return fmt.Errorf("创建备份服务失败: %w", err)
		}

		writer, stream, err := openBackupWriter(cmd.OutOrStdout(), outputPath, gzipEnabled)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := stream.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		progress := newCLIProgress(cmd.ErrOrStderr())
		exportOpts := []backup.ExportOption{backup.WithProgressReporter(progress)}
		if len(surahs) > 0 {
			exportOpts = append(exportOpts, backup.WithSurahs(surahs))
		}

		if err := service.Export(ctx, writer, exportOpts...); err != nil {
			return fmt.Errorf("导出备份失败: %w", err)
		}

		if outputPath == "-" {
			cmd.PrintErrln("导出完成: 输出到标准输出")
		} else {
			cmd.Printf("导出完成: %s\n", outputPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "备份输出文件路径，使用 - 表示标准输出")
	exportCmd.Flags().Bool("gzip", false, "使用 gzip 压缩输出")
	exportCmd.Flags().StringSlice("surahs", nil, "仅导出指定章节，支持 1,2 或 1-3")
	exportCmd.Flags().Int("batch-size", 0, "批处理大小 (默认 512)")

	bindExportConfig()
}

func defaultExportFilename(gzipEnabled bool) string {
	ts := time.Now().UTC().Format("20060102-150405")
	filename := fmt.Sprintf("tafsirnet-backup-%s.jsonl", ts)
	if gzipEnabled {
		filename += ".gz"
	}
	return filename
}

func bindExportConfig() {
	bindFlagToViper(exportOutputKey, exportCmd.Flags().Lookup("output"))
	bindFlagToViper(exportGzipKey, exportCmd.Flags().Lookup("gzip"))
	bindFlagToViper(exportSurahsKey, exportCmd.Flags().Lookup("surahs"))
	bindFlagToViper(exportBatchKey, exportCmd.Flags().Lookup("batch-size"))
}

type cliProgress struct {
	out         io.Writer
	totals      map[int]int
	counts      map[int]int
	lastPrinted map[int]int
	steps       map[int]int
}

func newCLIProgress(out io.Writer) *cliProgress {
	return &cliProgress{
		out:         out,
		totals:      make(map[int]int),
		counts:      make(map[int]int),
		lastPrinted: make(map[int]int),
		steps:       make(map[int]int),
	}
}

func (p *cliProgress) StartSurah(surah int, total int) {
	if total < 0 {
		total = 0
	}
	p.totals[surah] = total
	p.counts[surah] = 0
	p.lastPrinted[surah] = 0
	p.steps[surah] = progressStep(total)
	fmt.Fprintf(p.out, "开始导出第 %d 章 (共 %d 节)\n", surah, total)
}

func (p *cliProgress) Increment(surah int, delta int) {
	if delta <= 0 {
		return
	}
	current := p.counts[surah] + delta
	p.counts[surah] = current
	total := p.totals[surah]
	step := p.steps[surah]
	if step <= 0 {
		step = 1
	}
	last := p.lastPrinted[surah]
	if current == total || last == 0 || current-last >= step {
		fmt.Fprintf(p.out, "导出进度 第 %d 章: %d/%d\n", surah, current, total)
		p.lastPrinted[surah] = current
	}
}

func (p *cliProgress) FinishSurah(surah int) {
	fmt.Fprintf(p.out, "完成导出第 %d 章: %d/%d 节\n", surah, p.counts[surah], p.totals[surah])
	delete(p.counts, surah)
	delete(p.totals, surah)
	delete(p.lastPrinted, surah)
	delete(p.steps, surah)
}

func progressStep(total int) int {
	if total <= 0 {
		return 100
	}
	step := total / 20
	if step < 1 {
		step = 1
	}
	if step > 100 {
		step = 100
	}
	return step
}
