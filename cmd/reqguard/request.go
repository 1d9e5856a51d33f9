package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/reqguard/pkg/reqguard"
)

func (a *app) requestCommand() *cobra.Command {
	var params, headers []string
	var data string

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Issue one request and print the response body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			call, err := buildCall(args[0], args[1], params, headers, data)
			if err != nil {
				return err
			}

			client, closeStore, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			resp, err := client.Do(cmd.Context(), call)
			if errors.Is(err, reqguard.ErrOffline) {
				ev := a.log.Warn()
				var apiErr *reqguard.APIError
				if errors.As(err, &apiErr) {
					ev = ev.Interface("details", apiErr.Details)
				}
				ev.Msg("offline: request queued for replay")
				return nil
			}
			if err != nil {
				var apiErr *reqguard.APIError
				if errors.As(err, &apiErr) {
					_ = a.printJSON(apiErr)
				}
				return err
			}

			a.log.Debug().
				Int("status", resp.StatusCode).
				Bool("from_cache", resp.FromCache).
				Bool("stale", resp.IsStale).
				Dur("duration", resp.Duration).
				Msg("response")
			_, err = fmt.Fprintln(a.out, string(resp.Data))
			return err
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header 'Name: value' (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	return cmd
}

// buildCall turns command-line arguments into a Call.
func buildCall(method, path string, params, headers []string, data string) (reqguard.Call, error) {
	call := reqguard.Call{Method: strings.ToUpper(method), URL: path}

	if len(params) > 0 {
		call.Params = url.Values{}
		for _, p := range params {
			k, v, ok := strings.Cut(p, "=")
			if !ok || k == "" {
				return call, fmt.Errorf("invalid --param %q (want key=value)", p)
			}
			call.Params.Add(k, v)
		}
	}
	if len(headers) > 0 {
		call.Headers = make(map[string]string, len(headers))
		for _, h := range headers {
			k, v, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(k) == "" {
				return call, fmt.Errorf("invalid --header %q (want 'Name: value')", h)
			}
			call.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if data != "" {
		call.Body = []byte(data)
		if call.Headers == nil {
			call.Headers = map[string]string{}
		}
		if _, ok := call.Headers["Content-Type"]; !ok {
			call.Headers["Content-Type"] = "application/json"
		}
	}
	return call, nil
}
