package main

import (
	"github.com/stellarlinkco/rag-eval/internal/llm"
)

var defaultProviderFromConfig = llm.DefaultProviderFromConfig
