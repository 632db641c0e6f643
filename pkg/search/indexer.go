package search

import (
	"context"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/models"
)

const primaryKey = "user_id"

// Indexer mantém a conexão com o índice de perfis no Meilisearch.
type Indexer struct {
	client    meilisearch.ServiceManager
	indexName string
}

// NewIndexer cria a conexão e garante que o índice existe.
func NewIndexer(host, apiKey, indexName string) *Indexer {
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))

	_, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        indexName,
		PrimaryKey: primaryKey,
	})
	if err != nil {
		log.Warn().Err(err).Str("index", indexName).Msg("[Search] aviso Meilisearch")
	}

	idx := client.Index(indexName)
	if _, err := idx.UpdateSearchableAttributes(&[]string{"permalink", "username", "city", "country"}); err != nil {
		log.Warn().Err(err).Msg("[Search] searchable attributes")
	}
	if _, err := idx.UpdateSortableAttributes(&[]string{"followers_count", "track_count", "dt_crawled"}); err != nil {
		log.Warn().Err(err).Msg("[Search] sortable attributes")
	}
	filterable := []interface{}{"country", "plan", "retrieved_tracks", "followers_count"}
	if _, err := idx.UpdateFilterableAttributes(&filterable); err != nil {
		log.Warn().Err(err).Msg("[Search] filterable attributes")
	}

	log.Info().Str("host", host).Str("index", indexName).Msg("[Search] conectado ao Meilisearch")
	return &Indexer{client: client, indexName: indexName}
}

// IndexProfiles envia os perfis como upsert parcial.
func (i *Indexer) IndexProfiles(_ context.Context, profiles []models.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	docs := make([]map[string]interface{}, 0, len(profiles))
	for _, p := range profiles {
		docs = append(docs, Document(p))
	}
	pk := primaryKey
	task, err := i.client.Index(i.indexName).UpdateDocuments(docs, &meilisearch.DocumentOptions{PrimaryKey: &pk})
	if err != nil {
		return fmt.Errorf("erro ao indexar perfis: %w", err)
	}
	log.Debug().Int64("task_uid", task.TaskUID).Int("docs", len(docs)).Msg("[Search] perfis enviados")
	return nil
}

// Document usa um map para que campos vazios não sobrescrevam valores já
// indexados num upsert parcial.
func Document(p models.Profile) map[string]interface{} {
	doc := map[string]interface{}{
		"user_id":          p.UserID,
		"followers_count":  p.FollowersCount,
		"followings_count": p.FollowingsCount,
		"track_count":      p.TrackCount,
		"likes_count":      p.LikesCount,
	}
	for k, v := range map[string]string{
		"permalink": p.Permalink,
		"username":  p.Username,
		"country":   p.Country,
		"city":      p.City,
		"plan":      p.Plan,
	} {
		if v != "" {
			doc[k] = v
		}
	}
	if p.CrawledAt != 0 {
		doc["dt_crawled"] = p.CrawledAt
	}
	return doc
}
