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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/usecase/backup"
)

const (
	importInputKey  = "backup.import.input"
	importGzipKey   = "backup.import.gzip"
	importSurahsKey = "backup.import.surahs"
	importBatchKey  = "backup.import.batch_size"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "从备份文件导入经注语料",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		inputPath := viper.GetString(importInputKey)
		if inputPath == "" {
			return fmt.Errorf("请通过 --input 指定备份文件或使用 - 表示标准输入")
		}
		surahs, err := surahsFromConfig(importSurahsKey)
		if err != nil {
			return err
		}

		reader, stream, err := openBackupReader(cmd.InOrStdin(), inputPath, wantsGzip(inputPath, viper.GetBool(importGzipKey)))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := stream.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		service, err := backup.NewService(store, backup.WithBatchSize(viper.GetInt(importBatchKey)))
		if err != nil {
			return fmt.Errorf("创建备份服务失败: %w", err)
		}

		var importOpts []backup.ImportOption
		if len(surahs) > 0 {
			importOpts = append(importOpts, backup.WithImportSurahs(surahs))
		}

		n, err := service.Import(ctx, reader, importOpts...)
		if err != nil {
			return fmt.Errorf("导入备份失败: %w", err)
		}

		if inputPath == "-" {
			cmd.Printf("导入完成: %d 条，数据来源于标准输入\n", n)
		} else {
			cmd.Printf("导入完成: %d 条，来源 %s\n", n, inputPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("input", "i", "", "备份文件路径，使用 - 表示标准输入")
	importCmd.Flags().Bool("gzip", false, "输入为 gzip 压缩格式")
	importCmd.Flags().StringSlice("surahs", nil, "仅导入指定章节，支持 1,2 或 1-3")
	importCmd.Flags().Int("batch-size", 0, "批处理大小 (默认 512)")

	bindImportConfig()
}

func bindImportConfig() {
	bindFlagToViper(importInputKey, importCmd.Flags().Lookup("input"))
	bindFlagToViper(importGzipKey, importCmd.Flags().Lookup("gzip"))
	bindFlagToViper(importSurahsKey, importCmd.Flags().Lookup("surahs"))
	bindFlagToViper(importBatchKey, importCmd.Flags().Lookup("batch-size"))
}
