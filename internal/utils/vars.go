package utils

const ToolUserAgent = "bracedl/1.0"

const DefaultChunkSize = 8 * 1024
