package openaiEmbedding

import (
	"context"
	"errors"
	"sync"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/rag/embedding"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	logger *logger_i.Logger
	once   sync.Once
	inst   *client
)

type client struct {
	openAi openai.Client
	model  string
}

func GetOpenAIEmbeddingClient(modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
		if apikey == "" {
			logger.Error("OpenAI API key is empty")
			return
		}
		inst = &client{
			openAi: openai.NewClient(option.WithAPIKey(apikey)),
			model:  modelName,
		}
		logger.Info("OpenAI Embedding client created", "model", modelName)
	})

	if inst == nil {
		return nil
	}
	return inst
}

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.openAi.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      c.model,
		Dimensions: openai.Int(int64(config.EmbeddingDimension)),
	})
	if err != nil {
		logger.Error("Error getting embedding from OpenAI", "error", err.Error())
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}
