package cmd

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/config"
	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/search"
	"github.com/kamusis/skillroute/internal/search/index"
)

// engine is a built index plus the inputs it was built from.
type engine struct {
	index  *index.Index
	docs   []search.SkillDoc
	issues []lexicon.ParseIssue
}

// loadEngine assembles and builds the index described by cfg. Thesaurus
// parse issues and an unreadable corrections file are logged, not fatal.
func loadEngine(cfg *config.Config, log *zap.Logger) (*engine, error) {
	stop, err := lexicon.LoadStopwords(cfg.StopwordsPath)
	if err != nil {
		return nil, err
	}
	tok := lexicon.NewTokenizer(stop...)

	th, issues, err := lexicon.LoadThesaurus(cfg.ThesaurusPath)
	if err != nil {
		return nil, err
	}
	for _, is := range issues {
		log.Warn("thesaurus line skipped", zap.String("file", cfg.ThesaurusPath), zap.Stringer("issue", is))
	}

	corr, err := lexicon.LoadCorrections(cfg.CorrectionsPath)
	if err != nil {
		log.Warn("corrections ignored", zap.Error(err))
		corr = lexicon.NewCorrections()
	}
	th.Overlay(corr.SynonymUpdates)

	var docs []search.SkillDoc
	if cfg.CoreSkills {
		docs = append(docs, search.CoreSkills()...)
	}
	for _, d := range cfg.SkillDirs {
		found, err := search.DiscoverSkills(d.Path, d.Prefix)
		if err != nil {
			return nil, fmt.Errorf("cannot discover skills in %s: %w", d.Path, err)
		}
		log.Debug("skills discovered", zap.String("dir", d.Path), zap.Int("count", len(found)))
		docs = append(docs, found...)
	}

	ix := index.New(
		index.WithTokenizer(tok),
		index.WithThesaurus(th),
		index.WithCorrections(corr),
		index.WithLogger(log),
	)
	var kept []search.SkillDoc
	for _, doc := range docs {
		if err := ix.RegisterDoc(doc); err != nil {
			if errors.Is(err, index.ErrDuplicateTrigger) || errors.Is(err, index.ErrEmptyTrigger) {
				log.Warn("skill skipped", zap.String("trigger", doc.Trigger), zap.String("path", doc.Path), zap.Error(err))
				continue
			}
			return nil, err
		}
		kept = append(kept, doc)
	}
	ix.Build()

	return &engine{index: ix, docs: kept, issues: issues}, nil
}
