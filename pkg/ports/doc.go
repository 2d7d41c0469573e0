/*
Package ports defines the driven ports (interfaces) of the desops engines.

These interfaces decouple the automaton algebra from file formats, storage
backends and renderers, so the CLI and the HTTP/MCP adapters can mix them
freely.

# Key Interfaces

  - Loader: Reads an automaton from a stream (e.g. the .fsm or YAML formats).
  - Serializer: Writes an automaton to a stream.
  - Store: Persists automata by ID (e.g. in memory or Redis).
  - Renderer: Turns an automaton into a textual diagram (e.g. Mermaid).

RunStoreContract and RunCodecContract are reusable suites that every adapter
runs from its own tests.
*/
package ports
