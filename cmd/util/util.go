package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dSeg/rpc/client"
	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/serializer"
	"github.com/ValentinKolb/dSeg/rpc/transport"
	"github.com/ValentinKolb/dSeg/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// Exit codes of the cli
const (
	ExitOK           = 0
	ExitHelp         = 1 // help was displayed (or a generic error)
	ExitConnection   = 2 // server unreachable or credentials rejected
	ExitIncompatible = 3 // server speaks another major protocol version
)

// ExitError carries the exit code for an error
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command.
// -h is the host, help is only available as --help.
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "host"
	cmd.PersistentFlags().StringP(key, "h", "127.0.0.1", WrapString("Address of the dSeg server. Multiple addresses can be given as a comma-separated list, requests go to the first reachable one and fail over to the next"))

	key = "port"
	cmd.PersistentFlags().IntP(key, "p", 3000, WrapString("Port of the dSeg server (used for addresses without a port)"))

	key = "namespace"
	cmd.PersistentFlags().StringP(key, "n", "test", WrapString("Namespace to connect to"))

	key = "set"
	cmd.PersistentFlags().StringP(key, "s", "profiles", WrapString("Set of the profile records"))

	key = "username"
	cmd.PersistentFlags().StringP(key, "U", "", WrapString("Username to connect to the server"))

	key = "password"
	cmd.PersistentFlags().StringP(key, "P", "", WrapString("Password to connect to the server"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a request (each attempt goes to the next address)"))
}

// InitConfig loads the env files and initializes viper
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dseg")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// endpoints builds the server addresses from the host and port settings
func endpoints(hosts string, port int) []string {
	var result []string
	for _, host := range strings.Split(hosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(host); err != nil {
			host = net.JoinHostPort(host, strconv.Itoa(port))
		}
		result = append(result, host)
	}
	return result
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoints:     endpoints(viper.GetString("host"), viper.GetInt("port")),
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("retries"),
		Username:      viper.GetString("username"),
		Password:      viper.GetString("password"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.ByName(viper.GetString("serializer"))
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetNamespace retrieves the configured namespace
func GetNamespace() string {
	return viper.GetString("namespace")
}

// GetSet retrieves the configured set
func GetSet() string {
	return viper.GetString("set")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// Connect creates a client for the configured namespace.
// Failures carry the exit code: ExitConnection if the server can't be reached or rejects
// the credentials, ExitIncompatible if the protocol versions don't match.
func Connect() (*client.Client, error) {
	config := GetClientConfig()

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := GetTransport()
	if err != nil {
		return nil, err
	}

	c, err := client.NewRPCClient(GetNamespace(), *config, t, s)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, client.ErrIncompatibleVersion):
		return nil, &ExitError{Code: ExitIncompatible, Err: err}
	default:
		return nil, &ExitError{Code: ExitConnection, Err: fmt.Errorf("failed to connect to %s: %w", strings.Join(config.Endpoints, ","), err)}
	}
}

// Pause waits for the return key (interactive mode of the walkthroughs)
func Pause(in io.Reader, out io.Writer) {
	fmt.Fprint(out, "Hit return to continue")
	_, _ = bufio.NewReader(in).ReadString('\n')
}
