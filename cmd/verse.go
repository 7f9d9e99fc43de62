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
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eslsoft/tafsirnet/internal/adapter/mapping"
	"github.com/eslsoft/tafsirnet/internal/app"
	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/usecase"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <surah> <ayah>",
	Short: "按章节号查询经注",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		surah, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("无效的章节编号 %q", args[0])
		}
		ayah, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("无效的经文编号 %q", args[1])
		}
		return withUsecase(cmd, func(uc usecase.TafsirUsecase) error {
			entry, ok := uc.Lookup(cmd.Context(), surah, ayah)
			if !ok {
				return fmt.Errorf("未找到 %d:%d 的经注", surah, ayah)
			}
			return printJSON(cmd.OutOrStdout(), mapping.ToEntry(entry))
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "按关键词检索经注",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUsecase(cmd, func(uc usecase.TafsirUsecase) error {
			return printJSON(cmd.OutOrStdout(), mapping.ToEntries(uc.Search(cmd.Context(), strings.Join(args, " "))))
		})
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <text>",
	Short: "从文本中解析经文引用",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUsecase(cmd, func(uc usecase.TafsirUsecase) error {
			ref, ok := uc.ParseReference(cmd.Context(), strings.Join(args, " "))
			if !ok {
				return fmt.Errorf("未识别出经文引用")
			}
			cmd.Println(ref.String())
			return nil
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "基于经注生成讲解",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		style, _ := cmd.Flags().GetString("style")
		surah, _ := cmd.Flags().GetInt("surah")
		ayah, _ := cmd.Flags().GetInt("ayah")
		kind, _ := cmd.Flags().GetString("kind")
		promptOnly, _ := cmd.Flags().GetBool("prompt-only")
		question := strings.Join(args, " ")

		return withUsecase(cmd, func(uc usecase.TafsirUsecase) error {
			if promptOnly {
				opts := usecase.PromptOptions{
					Language: entity.ParseLanguage(language),
					Style:    entity.ParseStyleLevel(style),
					Kind:     entity.ParseAnswerKind(kind),
				}
				ref := entity.VerseReference{Surah: surah, Ayah: ayah}
				found := ref.Valid()
				if !found {
					ref, found = uc.ParseReference(cmd.Context(), question)
				}
				var entry *entity.CommentaryEntry
				if found {
					opts.Reference = &ref
					entry, _ = uc.Lookup(cmd.Context(), ref.Surah, ref.Ayah)
				}
				prompt, err := uc.BuildPrompt(cmd.Context(), entry, question, opts)
				if err != nil {
					return err
				}
				cmd.Println(prompt)
				return nil
			}

			result, err := uc.Ask(cmd.Context(), usecase.AskRequest{
				Question: question,
				Surah:    surah,
				Ayah:     ayah,
				Kind:     entity.ParseAnswerKind(kind),
				Language: entity.ParseLanguage(language),
				Style:    entity.ParseStyleLevel(style),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), mapping.ToExplanation(result))
		})
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd, searchCmd, parseCmd, askCmd)

	askCmd.Flags().String("language", "english", "讲解语言")
	askCmd.Flags().String("style", "simple", "讲解深度: simple, detailed 或 scholarly")
	askCmd.Flags().Int("surah", 0, "指定章节 (可选)")
	askCmd.Flags().Int("ayah", 0, "指定经文 (可选)")
	askCmd.Flags().String("kind", "explanation", "回答类型: explanation 或 reflection (每日反思)")
	askCmd.Flags().Bool("prompt-only", false, "仅输出生成的提示词，不调用模型")
}

func withUsecase(cmd *cobra.Command, fn func(usecase.TafsirUsecase) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	container, cleanup, err := app.Initialize(cfg)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer cleanup()
	return fn(container.Usecase)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
