package clienttools

// Ident is the strong type for a client-tool name, to avoid accidentally
// mixing tool names with arbitrary free-form strings.
type Ident string
