// Package replay implements "replay" subcommand: plays scenario files against
// exposure engine and writes results.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"
	yaml "gopkg.in/yaml.v3"

	"xpo/archive"
	"xpo/config"
	"xpo/scenario"
	"xpo/state"
)

// ScenarioExt is extension of scenario files considered in directories and
// archives.
const ScenarioExt = ".xml"

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("replay")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format := env.Cfg.Replay.OutputFormat
	if name := cmd.String("format"); len(name) > 0 {
		if format, err = config.ParseOutputFormat(name); err != nil {
			log.Warn("Unknown output format requested, using configured one", zap.Stringer("format", env.Cfg.Replay.OutputFormat), zap.Error(err))
			format = env.Cfg.Replay.OutputFormat
		}
	}

	env.Overwrite = cmd.Bool("overwrite") || env.Cfg.Replay.Overwrite
	if cmd.Bool("dump-registry") {
		env.Cfg.Replay.DumpRegistry = true
	}

	// zip does not define file name encoding, old archives may need a code
	// page to be forced
	if cp := cmd.String("force-zip-cp"); len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Replay starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format), zap.Stringer("session", env.Session))
	defer func(start time.Time) {
		log.Info("Replay completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	b := &batch{env: env, dst: dst, format: format, check: cmd.Bool("check"), log: log}
	if b.tmpl, err = parseNameTemplate(env.Cfg.Replay.OutputNameTemplate); err != nil {
		return err
	}

	hist := cmd.String("history")
	if len(hist) == 0 {
		hist = env.Cfg.Replay.History
	}
	if len(hist) > 0 && !b.check {
		if b.hist, err = openHistory(hist, env.Session.String(), time.Now()); err != nil {
			return err
		}
		log.Debug("Recording replay history", zap.String("database", hist))
		defer func() {
			err = multierr.Append(err, b.hist.Close())
		}()
	}

	if err := b.process(ctx, src); err != nil {
		return err
	}
	return b.summary()
}

// outcome is a single played scenario.
type outcome struct {
	src    string
	output string
	passed bool
	err    error
}

// batch plays every scenario found under source.
type batch struct {
	env    *state.LocalEnv
	dst    string
	format config.OutputFormat
	tmpl   *template.Template
	hist   *history
	log    *zap.Logger

	// only load scenarios, nothing is played or written
	check bool

	done []outcome
}

// process determines type of source (directory, archive with optional path
// inside, or single scenario file) and plays scenarios accordingly.
func (b *batch) process(ctx context.Context, src string) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exist, probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := b.processDir(ctx, head); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := archive.IsArchive(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := b.processArchive(ctx, head, filepath.ToSlash(tail), ""); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if len(tail) == 0 {
			b.playFile(ctx, head, filepath.Base(head))
			break
		}
		return fmt.Errorf("input was not recognized as scenario or archive (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree playing scenario files and scenario
// archives.
func (b *batch) processDir(ctx context.Context, dir string) (err error) {
	count := len(b.done)
	defer func() {
		if err == nil && count == len(b.done) {
			b.log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			b.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		isArchive, err := archive.IsArchive(path)
		if err != nil {
			b.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := b.processArchive(ctx, path, "", filepath.Dir(rel)); err != nil {
				b.log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ScenarioExt) {
			b.log.Debug("Skipping file, not recognized as scenario or archive", zap.String("file", path))
			return nil
		}
		b.playFile(ctx, path, rel)
		return nil
	})
}

// processArchive plays scenario files inside archive found under pathIn.
// pathOut is archive location relative to processed directory.
func (b *batch) processArchive(ctx context.Context, path, pathIn, pathOut string) (err error) {
	count := len(b.done)
	defer func() {
		if err == nil && count == len(b.done) {
			b.log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	return archive.Walk(path, pathIn, b.env.CodePage, func(e archive.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.DecodeErr != nil {
			n, _ := ianaindex.IANA.Name(b.env.CodePage)
			b.log.Warn("Unable to convert archive name from specified encoding",
				zap.String("charset", n), zap.String("path", e.Name), zap.Error(e.DecodeErr))
		}
		if !strings.EqualFold(filepath.Ext(e.Name), ScenarioExt) {
			b.log.Debug("Skipping file in archive, not recognized as scenario", zap.String("archive", e.Archive), zap.String("file", e.Name))
			return nil
		}

		r, err := e.Open()
		if err != nil {
			b.log.Error("Unable to process file in archive", zap.String("archive", e.Archive), zap.String("file", e.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		b.play(ctx, r, filepath.Join(pathOut, filepath.FromSlash(e.Name)))
		return nil
	})
}

func (b *batch) playFile(ctx context.Context, path, src string) {
	f, err := os.Open(path)
	if err != nil {
		b.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		b.done = append(b.done, outcome{src: src, err: err})
		return
	}
	defer f.Close()
	b.play(ctx, f, src)
}

// play loads and runs single scenario. "src" is scenario path relative to
// processed directory or archive, or base name when a file was given.
func (b *batch) play(ctx context.Context, r io.Reader, src string) {
	var (
		o   = outcome{src: src}
		res *scenario.Result
	)
	defer func() {
		b.done = append(b.done, o)
		if b.hist != nil && !b.check {
			b.remember(o, res)
		}
	}()

	b.log.Info("Replay of scenario starting", zap.String("from", src))
	defer func(start time.Time) {
		// malformed scenarios must not stop the batch
		if p := recover(); p != nil {
			b.log.Error("Replay of scenario ended with panic",
				zap.Any("panic", p), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			o.err = fmt.Errorf("replay panic: %v", p)
			return
		}
		if o.err != nil {
			b.log.Error("Unable to replay scenario", zap.String("from", src), zap.Error(o.err))
			return
		}
		b.log.Info("Replay of scenario completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", o.output), zap.Bool("passed", o.passed))
	}(time.Now())

	sc, err := scenario.Load(r, src, b.log)
	if err != nil {
		o.err = fmt.Errorf("unable to load scenario (%s): %w", src, err)
		return
	}
	if b.check {
		b.log.Info("Scenario is valid", zap.String("name", sc.Name), zap.Int("nodes", sc.Nodes()), zap.Int("steps", len(sc.Steps)))
		o.passed = true
		return
	}
	res, err = scenario.Run(ctx, sc, b.env.Cfg, b.log)
	if err != nil {
		o.err = fmt.Errorf("unable to play scenario (%s): %w", src, err)
		return
	}
	res.Session = b.env.Session.String()
	o.passed = res.Passed()

	o.output = b.outputPath(src, res)
	if o.err = b.write(res, o.output); o.err != nil {
		return
	}
	if err := res.Err(); err != nil {
		o.err = err
	}

	if b.env.Rpt != nil {
		b.env.Rpt.Store(fmt.Sprintf("result-%s%s", slug.Make(res.Name), b.format.Ext()), o.output)
	}
}

// remember compares outcome with the previous session which played the same
// source and stores it.
func (b *batch) remember(o outcome, res *scenario.Result) {
	passed, found, err := b.hist.previous(o.src)
	switch {
	case err != nil:
		b.log.Warn("Unable to query replay history", zap.String("source", o.src), zap.Error(err))
	case found && passed && !o.passed:
		b.log.Warn("Scenario regressed since previous session", zap.String("source", o.src))
	case found && !passed && o.passed:
		b.log.Info("Scenario passes again", zap.String("source", o.src))
	}
	if err := b.hist.record(o, res); err != nil {
		b.log.Warn("Unable to store replay history", zap.String("source", o.src), zap.Error(err))
	}
}

// outputPath keeps source directory structure. File name is derived from
// scenario name or from expanded name template, which may add subdirectories.
func (b *batch) outputPath(src string, res *scenario.Result) string {
	outDir := filepath.Join(b.dst, filepath.Dir(src))
	if b.tmpl != nil {
		name, err := expandNameTemplate(b.tmpl, newValues(res, src, b.format))
		if err != nil {
			b.log.Warn("Unable to prepare output file name, using default", zap.String("from", src), zap.Error(err))
		} else if segments := splitPath(name); len(segments) > 0 {
			parts := []string{outDir}
			for _, seg := range segments {
				if seg = slug.Make(seg); len(seg) > 0 {
					parts = append(parts, seg)
				}
			}
			if len(parts) > 1 {
				return filepath.Join(parts...) + b.format.Ext()
			}
		}
	}

	base := slug.Make(res.Name)
	if len(base) == 0 {
		base = slug.Make(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
	}
	if len(base) == 0 {
		base = "scenario"
	}
	return filepath.Join(outDir, base+b.format.Ext())
}

// splitPath splits expanded template on both separators, empty and dot
// segments are dropped so template cannot leave destination.
func splitPath(name string) []string {
	var out []string
	for seg := range strings.SplitSeq(filepath.ToSlash(name), "/") {
		if seg = strings.TrimSpace(seg); len(seg) > 0 && seg != "." && seg != ".." {
			out = append(out, seg)
		}
	}
	return out
}

func (b *batch) write(res *scenario.Result, name string) (err error) {
	if _, err := os.Stat(name); err == nil {
		if !b.env.Overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		b.log.Warn("Overwriting existing file", zap.String("file", name))
		if err = os.Remove(name); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	out, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	switch b.format {
	case config.OutputFormatText:
		err = res.WriteText(out)
	case config.OutputFormatIon:
		w := ion.NewBinaryWriter(out)
		err = multierr.Append(ion.MarshalTo(w, res), w.Finish())
	default:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		err = multierr.Append(enc.Encode(res), enc.Close())
	}
	if err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}
	return nil
}

// summary logs outcome of every scenario in natural order of sources and
// returns combined error of scenarios which failed.
func (b *batch) summary() (err error) {
	sort.Slice(b.done, func(i, j int) bool {
		return natural.Less(b.done[i].src, b.done[j].src)
	})
	type line struct {
		Source string `yaml:"source"`
		Output string `yaml:"output,omitempty"`
		Passed bool   `yaml:"passed"`
		Error  string `yaml:"error,omitempty"`
	}
	lines := make([]line, 0, len(b.done))
	passed := 0
	for _, o := range b.done {
		l := line{Source: o.src, Output: o.output, Passed: o.err == nil}
		if o.err == nil {
			passed++
		} else {
			l.Error = o.err.Error()
		}
		lines = append(lines, l)
		err = multierr.Append(err, o.err)
		b.log.Debug("Scenario", zap.String("source", o.src), zap.String("output", o.output), zap.Bool("passed", o.err == nil))
	}
	b.log.Info("Replay summary", zap.Int("scenarios", len(b.done)), zap.Int("passed", passed), zap.Int("failed", len(b.done)-passed))
	if er := b.env.Rpt.StoreYAML("summary.yaml", lines); er != nil {
		b.log.Warn("Unable to store replay summary", zap.Error(er))
	}
	return err
}
