package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wavscribe/clipboard"
	"wavscribe/config"
	"wavscribe/progress"
	"wavscribe/services"
	"wavscribe/types"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	uploadEndpoint  string
	uploadType      string
	uploadCopy      bool
	uploadSmoothing float64
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.wav>",
	Short: "Upload a WAV file and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := config.GetUploadEndpoint()
		if cmd.Flags().Changed("endpoint") {
			endpoint = uploadEndpoint
		}
		if err := config.ValidateEndpoint(endpoint); err != nil {
			return err
		}

		smoothing := config.GetSmoothing()
		if cmd.Flags().Changed("smoothing") {
			smoothing = uploadSmoothing
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runUpload(ctx, cmd, uploadOptions{
			ref:       types.FileRef{Path: args[0], Type: uploadType},
			endpoint:  endpoint,
			smoothing: smoothing,
			copy:      uploadCopy,
			timeout:   config.GetUploadTimeout(),
			clip:      clipboard.New(cmd.OutOrStdout()),
		})
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadEndpoint, "endpoint", "", "upload endpoint URL (default from config)")
	uploadCmd.Flags().StringVar(&uploadType, "type", "", "declared media type (default: sniffed from content)")
	uploadCmd.Flags().BoolVar(&uploadCopy, "copy", false, "copy the transcript to the clipboard")
	uploadCmd.Flags().Float64Var(&uploadSmoothing, "smoothing", 0, "rate smoothing factor in (0,1], 0 for the whole-upload average")
}

type uploadOptions struct {
	ref       types.FileRef
	endpoint  string
	smoothing float64
	copy      bool
	timeout   time.Duration
	clip      clipboard.Writer
}

func runUpload(ctx context.Context, cmd *cobra.Command, opts uploadOptions) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	file, err := services.SelectFiles(services.NewFileService(), []types.FileRef{opts.ref})
	if err != nil {
		return userError(err)
	}

	bar := newBarObserver(errOut, file.Name)
	uploader := services.NewUploader(
		opts.endpoint,
		services.WithHTTPClient(&http.Client{Timeout: opts.timeout}),
		services.WithEstimatorOptions(progress.WithSmoothing(opts.smoothing)),
	)

	result, err := uploader.Upload(ctx, *file, bar)
	if err != nil {
		return userError(err)
	}

	fmt.Fprintln(out, "File was uploaded successfully:")
	for _, u := range result.URLs {
		fmt.Fprintln(out, u)
	}

	transcript := services.NewTranscript(opts.clip)
	transcript.Set(result.Text)
	if result.Text != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, result.Text)
	}

	if opts.copy {
		if err := transcript.Copy(ctx); err != nil {
			return userError(err)
		}
		fmt.Fprintf(errOut, "Transcript copied (%s)\n", transcript.CopyMethod())
	}
	return nil
}

// cliError prints the user-facing message and keeps err for errors.Is
type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.err }

func userError(err error) error {
	return &cliError{msg: services.UserMessage(err), err: err}
}

// barObserver renders upload progress on a terminal progress bar
type barObserver struct {
	w           io.Writer
	name        string
	interactive bool
	bar         *progressbar.ProgressBar
}

func newBarObserver(w io.Writer, name string) *barObserver {
	interactive := false
	if f, ok := w.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &barObserver{w: w, name: name, interactive: interactive}
}

func (b *barObserver) OnProgress(est progress.Estimate) {
	if b.bar == nil {
		b.bar = progressbar.NewOptions64(est.Total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetVisibility(b.interactive),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
	}
	b.bar.Describe(fmt.Sprintf("%s %6.2f%% (%s left)", b.name, est.Percentage, progress.FormatRemaining(est)))
	_ = b.bar.Set64(est.Loaded)
}

func (b *barObserver) OnSuccess(*services.Result) {
	b.finish()
}

func (b *barObserver) OnFailure(error) {
	b.finish()
}

func (b *barObserver) finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}
