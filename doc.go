// Package lexrag embeds the bilingual legal question answering pipeline in a
// Go program: hybrid retrieval over Arabic and French legal texts and grounded
// answers with citations.
//
// The in-process index needs no server, which suits tests and small corpora:
//
//	client, _ := lexrag.New(ctx,
//	    lexrag.WithEmbedder(emb),
//	    lexrag.WithGenerator(gen),
//	)
//	defer client.Close()
//
//	_, _ = client.Ingest(ctx, &lexrag.Document{Title: "Code pénal", ContentFr: text})
//	chunks, _ := client.Retrieve(ctx, "peine pour le vol", lexrag.RetrieveOptions{Count: 5})
//	answer, _ := client.Answer(ctx, "ما هي عقوبة السرقة؟", lexrag.Arabic)
//
// For a shared corpus connect to Redis 8+ or Valkey with WithRedis or WithValkey.
package lexrag
