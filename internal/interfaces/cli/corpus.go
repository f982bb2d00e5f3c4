package cli

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/deckscan/internal/bootstrap"
	"github.com/turtacn/deckscan/internal/corpus"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	minioclient "github.com/turtacn/deckscan/internal/infrastructure/storage/minio"
	"github.com/turtacn/deckscan/pkg/errors"
)

// NewCorpusCmd groups corpus maintenance commands.
func NewCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Fetch and inspect the card name corpus",
	}
	cmd.AddCommand(newCorpusFetchCmd(), newCorpusStatsCmd())
	return cmd
}

// FetchedFile describes one list written by corpus fetch.
type FetchedFile struct {
	Kind     corpus.Kind `json:"kind"`
	Path     string      `json:"path"`
	Names    int         `json:"names"`
	Uploaded string      `json:"uploaded,omitempty"`
}

// FetchResult lists the files written by corpus fetch.
type FetchResult struct {
	Files []FetchedFile `json:"files"`
}

func (r FetchResult) String() string {
	var sb strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&sb, "%s: %d names -> %s", f.Kind, f.Names, f.Path)
		if f.Uploaded != "" {
			fmt.Fprintf(&sb, " (%s)", f.Uploaded)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r FetchResult) TableHeaders() []string { return []string{"KIND", "NAMES", "PATH", "UPLOADED"} }

func (r FetchResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Files))
	for _, f := range r.Files {
		rows = append(rows, []string{string(f.Kind), strconv.Itoa(f.Names), f.Path, f.Uploaded})
	}
	return rows
}

func newCorpusFetchCmd() *cobra.Command {
	var dir, upload string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the configured corpus and write it as plain list files",
		Long: "Loads the entity and keyword lists from their configured locations (files, URLs or\n" +
			"s3:// objects), cleans them and writes one name per line into --dir. With --upload\n" +
			"s3://bucket/prefix the files are also stored in object storage so servers can load\n" +
			"them from there.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			if dir == "" {
				dir = cliCtx.Config.Corpus.DataDir
			}
			var bucket, prefix string
			if upload != "" {
				var ok bool
				if bucket, prefix, ok = minioclient.ParseURI(upload); !ok {
					return errors.InputError("upload target must be s3://bucket[/prefix]").WithDetail(upload)
				}
			}

			infra, err := bootstrap.NewInfrastructure(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			c, err := infra.CorpusLoader().Load(ctx)
			if err != nil {
				return err
			}
			paths, err := corpus.Export(c, dir)
			if err != nil {
				return err
			}

			if bucket != "" {
				if err := infra.MinIO.EnsureBucket(ctx, bucket); err != nil {
					return err
				}
			}

			counts := map[corpus.Kind]int{
				corpus.KindEntities: len(c.Entities),
				corpus.KindKeywords: len(c.Keywords),
				corpus.KindExtra:    len(c.Extra),
			}
			res := FetchResult{Files: []FetchedFile{}}
			for _, kind := range []corpus.Kind{corpus.KindEntities, corpus.KindKeywords, corpus.KindExtra} {
				p, ok := paths[kind]
				if !ok {
					continue
				}
				f := FetchedFile{Kind: kind, Path: p, Names: counts[kind]}
				if bucket != "" {
					key := path.Join(prefix, filepath.Base(p))
					if _, err := infra.Objects.Upload(ctx, &minioclient.UploadRequest{
						Bucket:      bucket,
						ObjectKey:   key,
						Data:        corpus.Encode(namesOf(c, kind)),
						ContentType: "text/plain; charset=utf-8",
						Metadata:    map[string]string{"kind": string(kind)},
					}); err != nil {
						return err
					}
					f.Uploaded = "s3://" + bucket + "/" + key
				}
				res.Files = append(res.Files, f)
			}

			cliCtx.Logger.Info("corpus fetched",
				logging.String("dir", dir),
				logging.Int("files", len(res.Files)))
			return PrintResult(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (default: corpus.data_dir)")
	cmd.Flags().StringVar(&upload, "upload", "", "also upload the lists to s3://bucket/prefix")
	return cmd
}

func namesOf(c *corpus.Corpus, kind corpus.Kind) []string {
	switch kind {
	case corpus.KindEntities:
		return c.Entities
	case corpus.KindKeywords:
		return c.Keywords
	default:
		return c.Extra
	}
}

// CorpusStats summarizes a loaded corpus and the engine built from it.
type CorpusStats struct {
	Entities        int           `json:"entities"`
	Keywords        int           `json:"keywords"`
	Extra           int           `json:"extra"`
	IndexedEntities int           `json:"indexed_entities"`
	IndexedKeywords int           `json:"indexed_keywords"`
	Sources         []string      `json:"sources"`
	LoadTime        time.Duration `json:"load_time_ns"`
}

func (s CorpusStats) String() string {
	return fmt.Sprintf("entities: %d (indexed %d)\nkeywords: %d (indexed %d)\nextra: %d\nsources: %s\nload time: %s\n",
		s.Entities, s.IndexedEntities, s.Keywords, s.IndexedKeywords, s.Extra,
		strings.Join(s.Sources, ", "), s.LoadTime.Round(time.Millisecond))
}

func (s CorpusStats) TableHeaders() []string { return []string{"LIST", "NAMES", "INDEXED"} }

func (s CorpusStats) TableRows() [][]string {
	return [][]string{
		{"entities", strconv.Itoa(s.Entities), strconv.Itoa(s.IndexedEntities)},
		{"keywords", strconv.Itoa(s.Keywords), strconv.Itoa(s.IndexedKeywords)},
		{"extra", strconv.Itoa(s.Extra), "-"},
	}
}

func newCorpusStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load the configured corpus and report list and index sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			infra, err := bootstrap.NewInfrastructure(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			start := time.Now()
			c, err := infra.CorpusLoader().Load(ctx)
			if err != nil {
				return err
			}
			r, err := c.Build(cliCtx.Config.Recognition, cliCtx.Logger)
			if err != nil {
				return err
			}

			st := r.Stats()
			return PrintResult(cmd, CorpusStats{
				Entities:        len(c.Entities),
				Keywords:        len(c.Keywords),
				Extra:           len(c.Extra),
				IndexedEntities: st.Entities,
				IndexedKeywords: st.Keywords,
				Sources:         corpusSources(cliCtx.Config.Corpus.Entities, cliCtx.Config.Corpus.Keywords, cliCtx.Config.Corpus.ExtraEntitiesFile),
				LoadTime:        time.Since(start),
			})
		},
	}
}

func corpusSources(locations ...string) []string {
	out := make([]string, 0, len(locations))
	for _, l := range locations {
		if l != "" {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
