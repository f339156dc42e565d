// Package mock provides test double implementations of AI service interfaces.
//
// The mocks allow tests to run without a model or network and produce
// deterministic, unit-length vectors derived from a hash of the input text.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockEmbedder := mock.NewMockEmbedder()
//	mockEmbedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("model unavailable")
//	}
//
//	// Check call counts
//	count := mockEmbedder.CallCount()
package mock
