package main

import (
	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/cache"
	"github.com/tempohq/teamtempo/config"
	"github.com/tempohq/teamtempo/metrics"
	"github.com/tempohq/teamtempo/source"
	"github.com/tempohq/teamtempo/source/github"
	"github.com/tempohq/teamtempo/source/sheets"
)

// buildRepositories assembles both source repositories, each wrapped in the
// shared TTL cache so repeated aggregations within the TTL skip the network.
func buildRepositories(cfg *config.Config, log *zap.SugaredLogger) (sheetsRepo, githubRepo metrics.SourceRepository) {
	resultCache := cache.New[*metrics.FetchResult]()
	ttl := cfg.Cache.TTL()

	sheetsClient := sheets.NewClient(sheets.ClientOptions{
		APIURL:            cfg.Sheets.APIURL,
		APIKey:            cfg.Sheets.APIKey,
		SpreadsheetID:     cfg.Sheets.SpreadsheetID,
		SheetName:         cfg.Sheets.SheetName,
		ChunkRows:         cfg.Sources.PageSize * 5,
		FetchTimeout:      cfg.Sources.FetchTimeout(),
		RequestsPerSecond: cfg.Sources.RequestsPerSecond,
	}, log)

	githubClient := github.NewClient(github.ClientOptions{
		APIURL:            cfg.GitHub.APIURL,
		Token:             cfg.GitHub.Token,
		Owner:             cfg.GitHub.Owner,
		Repo:              cfg.GitHub.Repo,
		PageSize:          cfg.Sources.PageSize,
		FetchTimeout:      cfg.Sources.FetchTimeout(),
		RequestsPerSecond: cfg.Sources.RequestsPerSecond,
	}, log)

	sheetsRepo = source.NewCachedRepository(sheets.NewRepository(sheetsClient), resultCache, ttl, log)
	githubRepo = source.NewCachedRepository(github.NewRepository(githubClient), resultCache, ttl, log)
	return sheetsRepo, githubRepo
}
