package notify

// Mailer 定义对外发信接口。
type Mailer interface {
	// SendContactMessage 将站内联系表单转发给失物招领管理处。
	//
	// 参数:
	//   name: 发件人姓名
	//   fromEmail: 发件人回信邮箱
	//   subject: 主题
	//   message: 正文
	SendContactMessage(name, fromEmail, subject, message string) error
}
