package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client connects to the erpkb daemon over a Unix socket. One connection
// per call; the daemon handles short-lived connections cheaply.
type Client struct {
	sockPath string
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath}
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	resp, err := c.call(Request{Method: MethodHealth})
	if err != nil {
		return nil, err
	}
	var result HealthResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Backends lists the registered backends.
func (c *Client) Backends() (*BackendsResult, error) {
	resp, err := c.call(Request{Method: MethodBackends})
	if err != nil {
		return nil, err
	}
	var result BackendsResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Resolve asks a backend catalog for an entry by approximate name.
func (c *Client) Resolve(backend, capability, name string) (*ResolveResult, error) {
	resp, err := c.call(Request{
		Method: MethodResolve,
		Params: ResolveParams{
			BackendParams: BackendParams{Backend: backend, Capability: capability},
			Name:          name,
		},
	})
	if err != nil {
		return nil, err
	}
	var result ResolveResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Names lists a backend catalog's entry names.
func (c *Client) Names(backend, capability string) (*NamesResult, error) {
	resp, err := c.call(Request{
		Method: MethodNames,
		Params: BackendParams{Backend: backend, Capability: capability},
	})
	if err != nil {
		return nil, err
	}
	var result NamesResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search asks which entries' content matches the given keywords. Threshold 0
// uses the server default.
func (c *Client) Search(backend, capability string, keywords []string, threshold float64) (*SearchResult, error) {
	resp, err := c.call(Request{
		Method: MethodSearch,
		Params: SearchParams{
			BackendParams: BackendParams{Backend: backend, Capability: capability},
			Keywords:      keywords,
			Threshold:     threshold,
		},
	})
	if err != nil {
		return nil, err
	}
	var result SearchResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reference asks which entry declares the given back-reference.
func (c *Client) Reference(backend, capability, reference string) (*ReferenceResult, error) {
	resp, err := c.call(Request{
		Method: MethodReference,
		Params: ReferenceParams{
			BackendParams: BackendParams{Backend: backend, Capability: capability},
			Reference:     reference,
		},
	})
	if err != nil {
		return nil, err
	}
	var result ReferenceResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate checks a field set against an operation's schema.
func (c *Client) Validate(backend, operation string, fields []string) (map[string]any, error) {
	resp, err := c.call(Request{
		Method: MethodValidate,
		Params: ValidateParams{Backend: backend, Operation: operation, Fields: fields},
	})
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	_, err := c.call(Request{Method: MethodShutdown})
	return err
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) call(req Request) (*Response, error) {
	return c.callWithTimeout(req, 5*time.Second)
}

func (c *Client) callWithTimeout(req Request, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// One deadline for the whole request/response exchange.
	conn.SetDeadline(time.Now().Add(timeout))

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, maxMessageSize), maxMessageSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return nil, fmt.Errorf("empty response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	return &resp, nil
}

// decodeResult re-marshals the untyped result into the method's struct.
func decodeResult(resp *Response, dst any) error {
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
