package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/config"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/session"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/transfer"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/ui"
)

var (
	flagReceiverServer   string
	flagReceiverSTUN     string
	flagReceiverTURN     string
	flagReceiverTURNUser string
	flagReceiverTURNPass string
	flagReceiverRelay    bool
	flagReceiverName     string
	flagReceiverDir      string
	flagReceiverYes      bool
)

var receiveCmd = &cobra.Command{
	Use:     "receive <room-code|url>",
	Aliases: []string{"r"},
	Short:   "Receive a file from a peer",
	Long: `Join a room by its six-digit code and receive a file over a WebRTC
data channel.

Examples:
  opendrop receive 482913
  opendrop receive http://drop.example.com:3000?room=482913
  opendrop receive 482913 --dir ~/Downloads --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return receiveFile(code)
	},
}

type offerArrival struct {
	remoteID string
	offer    transfer.Offer
}

func receiveFile(code string) error {
	cfg, err := LoadConfig(config.Options{
		Server:     flagReceiverServer,
		STUNServer: flagReceiverSTUN,
		TURNServer: flagReceiverTURN,
		TURNUser:   flagReceiverTURNUser,
		TURNPass:   flagReceiverTURNPass,
		ForceRelay: flagReceiverRelay,
	})
	if err != nil {
		return err
	}

	sess := session.New(cfg, session.DirSink{Dir: flagReceiverDir})

	offers := make(chan offerArrival, 4)
	transferDone := make(chan error, 1)

	var mu sync.Mutex
	var live *ui.LiveProgress
	peerNames := make(map[string]string)

	sess.OnPeerUsable = func(id, name string) {
		mu.Lock()
		peerNames[id] = name
		mu.Unlock()
	}
	sess.OnOffer = func(remoteID string, offer transfer.Offer) {
		select {
		case offers <- offerArrival{remoteID: remoteID, offer: offer}:
		default:
		}
	}
	sess.OnProgress = func(remoteID string, ts *transfer.Session) {
		mu.Lock()
		if live != nil {
			live.Update(ts.Bytes())
		}
		mu.Unlock()
	}
	sess.OnDone = func(remoteID string, ts *transfer.Session, err error) {
		select {
		case transferDone <- err:
		default:
		}
	}

	fmt.Println()
	sp := ui.NewConnectionSpinner("Connecting to server...")
	sp.Start()
	if err := sess.Connect(); err != nil {
		sp.Error("Could not reach the signaling server")
		return err
	}
	defer sess.Leave()
	sp.Success("Connected to signaling server")

	if err := sess.Join(code, flagReceiverName); err != nil {
		return err
	}
	go sess.Run()
	ui.PrintSuccessf("Joined room %s", sess.RoomCode)

	fmt.Println()
	sp = ui.NewWaitingSpinner("Waiting for a file offer...")
	sp.Start()
	ev := <-offers

	mu.Lock()
	peerName := peerNames[ev.remoteID]
	mu.Unlock()
	if peerName == "" {
		peerName = ev.remoteID
	}
	sp.Success(fmt.Sprintf("Offer received from %s", peerName))

	engine, err := sess.Engine(ev.remoteID)
	if err != nil {
		return err
	}

	if !flagReceiverYes && !ui.ConfirmOffer(peerName, ev.offer.Name, ev.offer.Size) {
		if err := engine.Reject(); err != nil {
			return err
		}
		ui.PrintInfo("Offer declined.")
		return nil
	}

	start := time.Now()
	if err := engine.Accept(); err != nil {
		return err
	}

	lp := ui.NewLiveProgress(ui.ModeReceive, ev.offer.Name, ev.offer.Size)
	lp.OnCancel = func() {
		engine.Cancel()
	}
	mu.Lock()
	live = lp
	mu.Unlock()
	lp.Start()

	err = <-transferDone
	if err != nil {
		lp.MarkFailed(err.Error())
		lp.Stop()
		return err
	}
	lp.MarkComplete()
	lp.Stop()

	elapsed := time.Since(start).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(ev.offer.Size) / elapsed
	}

	fmt.Println()
	ui.RenderTransferSummary("📊 Transfer Summary", ui.TransferSummary{
		Status:    "✅ Complete",
		File:      ev.offer.Name,
		TotalSize: ui.FormatBytes(ev.offer.Size),
		Duration:  fmt.Sprintf("%.2f seconds", elapsed),
		Speed:     ui.FormatSpeed(speed),
	})

	return nil
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVar(&flagReceiverServer, "server", "", "Signaling server host:port")
	receiveCmd.Flags().StringVarP(&flagReceiverName, "name", "n", "", "Display name shown to peers")
	receiveCmd.Flags().StringVarP(&flagReceiverSTUN, "stun", "s", "", "Custom STUN server")
	receiveCmd.Flags().StringVarP(&flagReceiverTURN, "turn", "t", "", "Custom TURN server")
	receiveCmd.Flags().StringVar(&flagReceiverTURNUser, "turn-user", "", "TURN username")
	receiveCmd.Flags().StringVar(&flagReceiverTURNPass, "turn-pass", "", "TURN password")
	receiveCmd.Flags().BoolVarP(&flagReceiverRelay, "relay", "r", false, "Force relay mode")
	receiveCmd.Flags().StringVarP(&flagReceiverDir, "dir", "d", "", "Directory to save received files")
	receiveCmd.Flags().BoolVarP(&flagReceiverYes, "yes", "y", false, "Accept incoming file offers without prompting")
}
