package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Shukurulla/dogerek-tutor/core"
)

// consoleService renders messages as MIME and prints them to the log.
// Local development stand-in for the sendgrid service.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	silent     bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService() core.EmailService {
	return &consoleService{
		from:       core.Conf.DefaultFromEmail,
		subjPrefix: "[" + core.Conf.AppName + "] ",
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		log.Fatalf("%+v", errors.Wrap(err, "rendering email"))
	}
	if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
		svc.send(*msg)
	}
}

func (svc consoleService) send(msg core.EmailMessage) {
	body := new(strings.Builder)

	fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}

	// the text/html alternative pair, wrapped in a mixed part when
	// attachments are along for the ride
	altW := multipart.NewWriter(body)
	defer altW.Close()

	var mixedW *multipart.Writer
	if msg.HasAttachments() {
		mixedW = multipart.NewWriter(body)
		defer mixedW.Close()
		fmt.Fprintf(body, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixedW.Boundary())
		svc.createPart(mixedW, textproto.MIMEHeader{
			"Content-Type": {"multipart/alternative; boundary=" + altW.Boundary()},
		}, "")
	} else {
		fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())
	}

	svc.createPart(altW, textproto.MIMEHeader{"Content-Type": {"text/plain"}}, msg.TextContent)
	if msg.HTMLContent != "" {
		svc.createPart(altW, textproto.MIMEHeader{"Content-Type": {"text/html"}}, msg.HTMLContent)
	}

	for _, at := range msg.Attachments {
		svc.createPart(mixedW, textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {"attachment; filename=" + at.Filename},
		}, at.Content.String())
	}

	if !svc.silent {
		log.Println(body.String())
	}
}

func (svc consoleService) createPart(mw *multipart.Writer, hdr textproto.MIMEHeader, content string) {
	w, err := mw.CreatePart(hdr)
	if err != nil {
		log.Fatalf("%+v", errors.Wrap(err, "creating "+hdr.Get("Content-Type")+" part"))
	}
	if content != "" {
		fmt.Fprintf(w, "%s\r\n", content)
	}
}

func joinAddresses(addrs []mail.Address) string {
	joined := make([]string, 0, len(addrs))
	for _, a := range addrs {
		joined = append(joined, a.String())
	}
	return strings.Join(joined, ", ")
}

// consoleServiceMock sends synchronously and keeps quiet; handler tests wire
// it so emails neither race the assertions nor spam the output.
type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock() core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			from:       core.Conf.DefaultFromEmail,
			subjPrefix: "[" + core.Conf.AppName + "] ",
			silent:     true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.sendMessage(msg)
	}
}
