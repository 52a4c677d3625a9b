package catalog

import "context"

// Type ids of the built-in catalog.
const (
	TypeUserQuery     = "user_query"
	TypeKnowledgeBase = "knowledge_base"
	TypeLLMEngine     = "llm_engine"
	TypeWebSearch     = "web_search"
	TypeOutput        = "output"
)

const builtinCatalog = `
- type: user_query
  label: User Query
  description: Accepts user queries and serves as the entry point for the workflow
  inputs: []
  outputs: [query]
  config_schema:
    type: object
    properties:
      placeholder: {type: string, title: Placeholder Text, default: "Enter your question..."}
  icon: search
  color: "#3B82F6"

- type: knowledge_base
  label: Knowledge Base
  description: Retrieves relevant context from uploaded documents using vector search
  inputs: [query]
  outputs: [context, retrieved_documents]
  config_schema:
    type: object
    properties:
      collection_name: {type: string, title: Collection Name, default: documents}
      max_results: {type: integer, title: Max Results, default: 3, minimum: 1, maximum: 10}
      similarity_threshold: {type: number, title: Similarity Threshold, default: 0.7, minimum: 0.0, maximum: 1.0}
  icon: book
  color: "#10B981"

- type: llm_engine
  label: LLM Engine
  description: Generates responses using language models like OpenAI GPT or Google Gemini
  inputs: [query, context]
  outputs: [response]
  config_schema:
    type: object
    properties:
      provider: {type: string, title: LLM Provider, enum: [openai, gemini], default: gemini}
      model: {type: string, title: Model, default: gemini-1.5-flash}
      custom_prompt:
        type: string
        title: Custom Prompt
        default: "You are a helpful AI assistant. Answer the user's question based on the provided context and your knowledge."
      use_web_search: {type: boolean, title: Use Web Search, default: false}
      temperature: {type: number, title: Temperature, default: 0.7, minimum: 0.0, maximum: 2.0}
      max_tokens: {type: integer, title: Max Tokens, default: 500, minimum: 1, maximum: 1000}
  icon: bot
  color: "#8B5CF6"

- type: web_search
  label: Web Search
  description: Searches the web for real-time information using Google or Bing
  inputs: [query]
  outputs: [search_results, context]
  config_schema:
    type: object
    properties:
      search_engine: {type: string, title: Search Engine, enum: [google, bing], default: google}
      max_results: {type: integer, title: Max Results, default: 3, minimum: 1, maximum: 10}
      search_type: {type: string, title: Search Type, enum: [general, news, academic], default: general}
  icon: globe
  color: "#06B6D4"

- type: output
  label: Output
  description: Displays the final response in a chat interface
  inputs: [response]
  outputs: []
  config_schema:
    type: object
    properties:
      format: {type: string, title: Output Format, enum: [text, markdown, json], default: text}
      show_metadata: {type: boolean, title: Show Metadata, default: false}
  icon: message
  color: "#F59E0B"
`

// Builtin returns the default component types.
func Builtin() []ComponentType {
	types, err := Parse([]byte(builtinCatalog))
	if err != nil {
		panic("catalog: builtin catalog: " + err.Error())
	}
	return types
}

// BuiltinSource serves Builtin.
var BuiltinSource Source = SourceFunc(func(context.Context) ([]ComponentType, error) {
	return Builtin(), nil
})
